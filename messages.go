package main

import (
	"fmt"
	"strings"
)

type MessageKey string

const (
	MsgAlreadyExist          MessageKey = "registration.alreadyExist"
	MsgError101              MessageKey = "registration.error101"
	MsgValidPhone            MessageKey = "forms.errorMessages.validPhone"
	MsgRequired              MessageKey = "forms.errorMessages.required"
	MsgInvalidEmail          MessageKey = "forms.errorMessages.validEmail"
	MsgInvalidValue          MessageKey = "forms.errorMessages.invalid"
	MsgPasswordsDiffer       MessageKey = "forms.errorMessages.passwordsDiffer"
	MsgGenericError          MessageKey = "errors.generic"
	MsgStepInProgress        MessageKey = "errors.stepInProgress"
	MsgCodeSent              MessageKey = "phoneValidation.codeSent"
	MsgCodeSentSms           MessageKey = "phoneValidation.codeSentSms"
	MsgChangePasswordSuccess MessageKey = "changePassword.success"
	MsgChangePasswordError   MessageKey = "changePassword.error"
	MsgForgotPasswordSent    MessageKey = "forgotPassword.sent"
	MsgLoggedOut             MessageKey = "logout.success"
	MsgNotLoggedIn           MessageKey = "errors.notLoggedIn"
	MsgSessionExpired        MessageKey = "errors.sessionExpired"
	MsgNoPendingCode         MessageKey = "phoneValidation.noPendingCode"
	MsgFormErrors            MessageKey = "forms.errorMessages.title"
	MsgContinue              MessageKey = "registration.continue"
	MsgUnknownGuide          MessageKey = "guides.unknown"
	MsgStepDone              MessageKey = "common.done"
	MsgAlreadyLoggedIn       MessageKey = "registration.alreadyLoggedIn"

	MsgSubscriptionProcessing   MessageKey = "subscriptions.beingProcessed"
	MsgSubscriptionWillGetEmail MessageKey = "subscriptions.willGetEmail"
	MsgSubscriptionActiveUntil  MessageKey = "subscriptions.activeUntil"
	MsgNoSubscription           MessageKey = "subscriptions.none"
	MsgUnknownPackage           MessageKey = "subscriptions.unknownPackage"
	MsgCheckoutReady            MessageKey = "subscriptions.checkoutReady"
	MsgCryptoAddress            MessageKey = "subscriptions.cryptoAddress"
)

// Messages is a catalog of user facing texts by language.
type Messages map[string]map[MessageKey]string

var defaultMessages = Messages{
	"en": {
		MsgAlreadyExist:          "An account with this %s already exists.",
		MsgError101:              "We could not complete your registration. Please contact support.",
		MsgValidPhone:            "Please enter a valid phone number.",
		MsgRequired:              "This field is required.",
		MsgInvalidEmail:          "Please enter a valid email address.",
		MsgInvalidValue:          "This value is not valid.",
		MsgPasswordsDiffer:       "Passwords do not match.",
		MsgGenericError:          "Something went wrong. Please try again.",
		MsgStepInProgress:        "Your previous request is still being processed.",
		MsgCodeSent:              "We sent a verification code to your WhatsApp.",
		MsgCodeSentSms:           "We sent a verification code by SMS.",
		MsgChangePasswordSuccess: "Your password was changed.",
		MsgChangePasswordError:   "Your password could not be changed.",
		MsgForgotPasswordSent:    "If an account exists for this email, a new password is on its way.",
		MsgLoggedOut:             "You are logged out.",
		MsgNotLoggedIn:           "You need to log in first.",
		MsgSessionExpired:        "Your registration session expired. Please run /register again.",
		MsgNoPendingCode:         "There is no verification code pending for you.",
		MsgFormErrors:            "Please correct the following fields",
		MsgContinue:              "Thanks! Continue with your contact details.",
		MsgUnknownGuide:          "There is no guide for this device.",
		MsgStepDone:              "All set! Use the button below to continue.",
		MsgAlreadyLoggedIn:       "You are already logged in.",

		MsgSubscriptionProcessing:   "Your subscription is being processed",
		MsgSubscriptionWillGetEmail: "You will receive an email as soon as it is active.",
		MsgSubscriptionActiveUntil:  "Your subscription is active until %s.",
		MsgNoSubscription:           "You have no active subscription.",
		MsgUnknownPackage:           "This package is no longer available.",
		MsgCheckoutReady:            "Your order is ready. Complete the payment with the button below.",
		MsgCryptoAddress:            "Send %s %s to `%s`.",
	},
	"es": {
		MsgAlreadyExist:          "Ya existe una cuenta con este %s.",
		MsgError101:              "No pudimos completar tu registro. Por favor contacta a soporte.",
		MsgValidPhone:            "Ingresa un número de teléfono válido.",
		MsgRequired:              "Este campo es obligatorio.",
		MsgInvalidEmail:          "Ingresa un correo electrónico válido.",
		MsgGenericError:          "Algo salió mal. Inténtalo de nuevo.",
		MsgCodeSent:              "Te enviamos un código de verificación por WhatsApp.",
		MsgCodeSentSms:           "Te enviamos un código de verificación por SMS.",
		MsgChangePasswordSuccess: "Tu contraseña fue cambiada.",
		MsgChangePasswordError:   "No se pudo cambiar tu contraseña.",
		MsgLoggedOut:             "Cerraste sesión.",
		MsgSessionExpired:        "Tu sesión de registro expiró. Ejecuta /register de nuevo.",
		MsgFormErrors:            "Corrige los siguientes campos",

		MsgSubscriptionProcessing:   "Tu suscripción se está procesando",
		MsgSubscriptionWillGetEmail: "Recibirás un correo en cuanto esté activa.",
		MsgNoSubscription:           "No tienes una suscripción activa.",
	},
}

// Get returns the text for key in lang, falling back to English and then to
// the key itself.
func (m Messages) Get(lang string, key MessageKey, args ...any) string {
	text, ok := m[strings.ToLower(lang)][key]
	if !ok {
		text, ok = m["en"][key]
	}
	if !ok {
		text = string(key)
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}
