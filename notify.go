package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	colorDefault     = 0x2ECC71
	colorDestructive = 0xE74C3C
)

// interactionSurface buffers what a workflow step wants to show and renders it
// as one ephemeral followup to the interaction.
type interactionSurface struct {
	siteURL     string
	messages    Messages
	lang        string
	notices     []Notice
	destination Destination

	embeds []*discordgo.MessageEmbed
	links  []discordgo.Button
	menus  []discordgo.SelectMenu
}

func newInteractionSurface(siteURL string, messages Messages, lang string) *interactionSurface {
	return &interactionSurface{siteURL: siteURL, messages: messages, lang: lang}
}

func (s *interactionSurface) Notify(notice Notice) {
	s.notices = append(s.notices, notice)
}

func (s *interactionSurface) Navigate(destination Destination) {
	s.destination = destination
}

// Attach adds an embed after the notices.
func (s *interactionSurface) Attach(embed *discordgo.MessageEmbed) {
	s.embeds = append(s.embeds, embed)
}

// Link adds a button opening url outside Discord.
func (s *interactionSurface) Link(label string, url string) {
	s.links = append(s.links, discordgo.Button{Label: label, Style: discordgo.LinkButton, URL: url})
}

// Menu adds a select menu on a row of its own.
func (s *interactionSurface) Menu(menu discordgo.SelectMenu) {
	s.menus = append(s.menus, menu)
}

// Params renders the buffered notices, the field errors and the navigation
// target.
func (s *interactionSurface) Params(fieldErrors FieldErrors) *discordgo.WebhookParams {
	embeds := append(noticeEmbeds(s.notices), s.embeds...)

	if len(fieldErrors) > 0 {
		embeds = append(embeds, s.fieldErrorsEmbed(fieldErrors))
	}

	params := &discordgo.WebhookParams{
		Embeds: embeds,
		Flags:  discordgo.MessageFlagsEphemeral,
	}
	if len(embeds) == 0 {
		done := s.destination != "" || len(s.links) > 0 || len(s.menus) > 0
		params.Content = s.messages.Get(s.lang, lo.Ternary(done, MsgStepDone, MsgGenericError))
	}

	var buttons []discordgo.MessageComponent
	if len(fieldErrors) > 0 {
		buttons = append(buttons, discordgo.Button{Label: "Edit your details", Style: discordgo.SecondaryButton, CustomID: buttonEdit})
	}
	for _, link := range s.links {
		buttons = append(buttons, link)
	}
	if button, ok := s.destinationButton(); ok {
		buttons = append(buttons, button)
	}
	if len(buttons) > 0 {
		params.Components = append(params.Components, discordgo.ActionsRow{Components: buttons})
	}
	for _, menu := range s.menus {
		params.Components = append(params.Components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}

	return params
}

func noticeEmbeds(notices []Notice) []*discordgo.MessageEmbed {
	return lo.Map(notices, func(notice Notice, _ int) *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{
			Title:       notice.Title,
			Description: notice.Message,
			Color:       lo.Ternary(notice.Variant == NoticeDestructive, colorDestructive, colorDefault),
		}
	})
}

func (s *interactionSurface) fieldErrorsEmbed(fieldErrors FieldErrors) *discordgo.MessageEmbed {
	keys := lo.Keys(fieldErrors)
	sort.Strings(keys)

	return &discordgo.MessageEmbed{
		Title: s.messages.Get(s.lang, MsgFormErrors),
		Color: colorDestructive,
		Fields: lo.Map(keys, func(key string, _ int) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{Name: key, Value: fieldErrors[key]}
		}),
	}
}

// destinationButton maps a navigation target to the control that leads there.
// Steps inside the bot get a button, pages of the site get a link.
func (s *interactionSurface) destinationButton() (discordgo.Button, bool) {
	switch s.destination {
	case "":
		return discordgo.Button{}, false
	case DestinationPhoneVerification:
		return discordgo.Button{Label: "Enter verification code", Style: discordgo.PrimaryButton, CustomID: buttonVerify}, true
	case DestinationRegistration:
		return discordgo.Button{Label: "Back to registration", Style: discordgo.SecondaryButton, CustomID: buttonEdit}, true
	}

	if s.siteURL == "" {
		return discordgo.Button{}, false
	}
	label := strings.TrimPrefix(string(s.destination), "/")
	return discordgo.Button{
		Label: fmt.Sprintf("Open %s", label),
		Style: discordgo.LinkButton,
		URL:   s.siteURL + string(s.destination),
	}, true
}

// Flush sends the buffered output as a followup to a deferred interaction.
func (s *interactionSurface) Flush(session *discordgo.Session, interaction *discordgo.InteractionCreate, fieldErrors FieldErrors) {
	params := s.Params(fieldErrors)
	if _, err := session.FollowupMessageCreate(interaction.Interaction, true, params); err != nil {
		log.WithError(err).WithField("dump", spew.Sdump(params)).Error("Failed to send interaction followup")
	}
}

// deferEphemeral acknowledges an interaction whose answer needs backend calls.
func deferEphemeral(session *discordgo.Session, interaction *discordgo.InteractionCreate) error {
	return session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// ephemeralResponse is a private message with optional embeds and buttons.
func ephemeralResponse(content string, embeds []*discordgo.MessageEmbed, buttons ...discordgo.MessageComponent) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{
		Content: content,
		Embeds:  embeds,
		Flags:   discordgo.MessageFlagsEphemeral,
	}
	if len(buttons) > 0 {
		data.Components = []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// respondEphemeral answers an interaction with a private message and optional
// buttons.
func respondEphemeral(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, buttons ...discordgo.MessageComponent) {
	err := session.InteractionRespond(interaction.Interaction, ephemeralResponse(content, nil, buttons...))
	if err != nil {
		log.WithError(err).WithField("interaction", interaction.ID).Error("Failed to respond to interaction")
	}
}

// HandleError logs err and answers the interaction with message.
func HandleError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error, message string) {
	entry := log.WithField("interaction", interaction.ID)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(message)
	respondEphemeral(session, interaction, ":x: "+message)
}

// maxEmbedDescription is the Discord limit for an embed description.
const maxEmbedDescription = 4096

// GuideEmbed renders a guide as numbered steps linking to the full page.
func GuideEmbed(guide *Guide) *discordgo.MessageEmbed {
	var description strings.Builder
	for n, step := range guide.Steps {
		line := fmt.Sprintf("%d. %s\n", n+1, step)
		if description.Len()+len(line) > maxEmbedDescription {
			break
		}
		description.WriteString(line)
	}

	embed := &discordgo.MessageEmbed{
		Title:       guide.Title,
		URL:         guide.URL,
		Description: description.String(),
		Color:       colorDefault,
	}
	if len(guide.Links) > 0 {
		embed.Fields = []*discordgo.MessageEmbedField{{
			Name:  "Links",
			Value: truncate(strings.Join(lo.Uniq(guide.Links), "\n"), 1000),
		}}
	}
	return embed
}

// maxSelectOptions is the Discord limit for the options of a select menu.
const maxSelectOptions = 25

// SubscriptionEmbed summarises the client's account and current plan.
func SubscriptionEmbed(overview *SubscriptionOverview, messages Messages, lang string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       overview.Brand.BrandName,
		Description: messages.Get(lang, MsgNoSubscription),
		Color:       colorDefault,
	}
	if overview.Expiry != "" {
		embed.Description = messages.Get(lang, MsgSubscriptionActiveUntil, overview.Expiry)
	}
	if overview.Client != nil && overview.Client.Username != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Account", Value: overview.Client.Username, Inline: true})
	}
	if overview.Brand.SupportEmail != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Support", Value: overview.Brand.SupportEmail, Inline: true})
	}
	return embed
}

// PackageMenu offers the packages on sale. It is absent when nothing is sold.
func PackageMenu(packages []SubscriptionPackage) (discordgo.SelectMenu, bool) {
	if len(packages) == 0 {
		return discordgo.SelectMenu{}, false
	}
	if len(packages) > maxSelectOptions {
		packages = packages[:maxSelectOptions]
	}

	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    selectPackage,
		Placeholder: "Choose a package",
		Options: lo.Map(packages, func(pack SubscriptionPackage, _ int) discordgo.SelectMenuOption {
			description := fmt.Sprintf("%.2f %s", pack.Price, pack.Currency)
			if pack.Promo != nil && pack.Promo.PromoCode != "" {
				description += fmt.Sprintf(" (promo %s)", pack.Promo.PromoCode)
			}
			return discordgo.SelectMenuOption{
				Label:       truncate(pack.Label, 90),
				Value:       pack.ID(),
				Description: truncate(strings.TrimSpace(description), 90),
			}
		}),
	}, true
}

// CoinMenu offers paying transactionID in one of coins. Each value carries
// the transaction so the choice needs no state.
func CoinMenu(transactionID string, coins []string) (discordgo.SelectMenu, bool) {
	if transactionID == "" || len(coins) == 0 {
		return discordgo.SelectMenu{}, false
	}
	if len(coins) > maxSelectOptions {
		coins = coins[:maxSelectOptions]
	}

	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    selectCoin,
		Placeholder: "Or pay with crypto",
		Options: lo.Map(coins, func(coin string, _ int) discordgo.SelectMenuOption {
			return discordgo.SelectMenuOption{Label: coin, Value: transactionID + coinSeparator + coin}
		}),
	}, true
}

const coinSeparator = "|"

// parseCoinChoice splits a CoinMenu value into its transaction and coin.
func parseCoinChoice(value string) (transactionID string, coin string, ok bool) {
	transactionID, coin, ok = strings.Cut(value, coinSeparator)
	return transactionID, coin, ok && transactionID != "" && coin != ""
}
