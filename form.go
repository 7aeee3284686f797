package main

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	modalPersonal       = "register:personal"
	modalContact        = "register:contact"
	modalPhoneCode      = "verify:code"
	modalLogin          = "account:login"
	modalChangePassword = "account:change-password"

	buttonContact = "register:open-contact"
	buttonEdit    = "register:edit"
	buttonVerify  = "verify:phone"

	selectPackage = "subscriptions:package"
	selectCoin    = "subscriptions:coin"
)

// Discord allows at most this many rows in a modal.
const maxModalRows = 5

// textInput is a single-input row of a modal.
func textInput(id, label, placeholder, value string, required bool, minLength, maxLength int) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Placeholder: placeholder,
				Value:       value,
				Style:       discordgo.TextInputShort,
				Required:    required,
				MinLength:   minLength,
				MaxLength:   maxLength,
			},
		},
	}
}

func modal(customID, title string, rows ...discordgo.ActionsRow) *discordgo.InteractionResponse {
	if len(rows) > maxModalRows {
		log.WithFields(log.Fields{"modal": customID, "rows": len(rows)}).Warn("Modal has too many rows, dropping the rest")
		rows = rows[:maxModalRows]
	}

	components := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		components = append(components, row)
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: components,
		},
	}
}

// PersonalModal asks for the identity half of the registration form. Trial
// signups must fill in birthday and referral.
func PersonalModal(form FormValues, trial bool) *discordgo.InteractionResponse {
	return modal(modalPersonal, "Create your account",
		textInput("firstName", "First name", "", form.FirstName, true, 1, 64),
		textInput("lastName", "Last name", "", form.LastName, true, 1, 64),
		textInput("username", "Username", "letters and digits", form.Username, true, 3, 32),
		textInput("birthday", "Birthday", "YYYY-MM-DD", form.Birthday, trial, 0, 10),
		textInput("referral", "Referral code", "", form.Referral, trial, 0, 64),
	)
}

// ContactModal asks for the contact half of the registration form. The phone
// is optional unless the signup is a trial.
func ContactModal(form FormValues, trial bool) *discordgo.InteractionResponse {
	return modal(modalContact, "Contact details",
		textInput("email", "Email address", "you@example.com", form.Email, true, 3, 254),
		textInput("country", "Country code", "US", form.Country, true, 2, 2),
		textInput("countryState", "State or province", "", form.CountryState, false, 0, 64),
		textInput("phone", "Phone number", "+14155552671", form.Phone, trial, 0, 32),
	)
}

func PhoneCodeModal() *discordgo.InteractionResponse {
	return modal(modalPhoneCode, "Verify your phone",
		textInput("code", "Verification code", "", "", true, 1, 12),
	)
}

func LoginModal() *discordgo.InteractionResponse {
	return modal(modalLogin, "Log in",
		textInput("username", "Username or email", "", "", true, 1, 254),
		textInput("password", "Password", "", "", true, 1, 128),
	)
}

func ChangePasswordModal() *discordgo.InteractionResponse {
	return modal(modalChangePassword, "Change password",
		textInput("newPassword", "New password", "", "", true, 6, 128),
		textInput("confirmPassword", "Repeat the new password", "", "", true, 6, 128),
	)
}

// ModalValues collects the text inputs of a submitted modal by custom id.
func ModalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return values
}

// applyPersonal copies the personal modal values into form.
func applyPersonal(form *FormValues, values map[string]string) {
	form.FirstName = values["firstName"]
	form.LastName = values["lastName"]
	form.Username = values["username"]
	form.Birthday = values["birthday"]
	form.Referral = values["referral"]
}

// applyContact copies the contact modal values into form.
func applyContact(form *FormValues, values map[string]string) {
	form.Email = values["email"]
	form.Country = strings.ToUpper(values["country"])
	form.CountryState = values["countryState"]
	form.Phone = values["phone"]
}
