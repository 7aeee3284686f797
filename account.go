package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrLoginRejected is returned when the backend refuses the credentials.
var ErrLoginRejected = errors.New("login rejected")

// AccountBackend is the part of the API used by account operations.
type AccountBackend interface {
	Login(ctx context.Context, creds LoginCredentials) (*LoginResponse, error)
	Logout(ctx context.Context, token string) error
	GenerateNewPasswordByMail(ctx context.Context, email string) (bool, error)
	ChangePassword(ctx context.Context, token string, newPassword string) error
}

// Accounts handles login, logout and password management for registered users.
type Accounts struct {
	backend   AccountBackend
	persister SessionPersister
	messages  Messages
}

func NewAccounts(backend AccountBackend, persister SessionPersister, messages Messages) *Accounts {
	return &Accounts{backend: backend, persister: persister, messages: messages}
}

func language(session *Session) string {
	return session.Store.Snapshot().Language
}

// Login exchanges credentials for a session token. A refusal carries the
// backend's own message to the user.
func (a *Accounts) Login(ctx context.Context, session *Session, ui Surface, creds LoginCredentials) error {
	creds.Username = strings.TrimSpace(creds.Username)
	lang := language(session)

	res, err := a.backend.Login(ctx, creds)
	if err != nil {
		a.report(session, ui, "login", err)
		return err
	}

	if res.Error != "" {
		ui.Notify(Notice{Variant: NoticeDestructive, Message: res.Error})
		return fmt.Errorf("%w: %s", ErrLoginRejected, res.Error)
	}
	if res.Token == "" {
		ui.Notify(Notice{Variant: NoticeDestructive, Message: a.messages.Get(lang, MsgGenericError)})
		return ErrLoginRejected
	}

	if err := a.persister.Persist(ctx, session, res.Token); err != nil {
		a.report(session, ui, "login", err)
		return err
	}

	log.WithField("user", session.UserID).Info("User logged in")
	ui.Navigate(DestinationStartWatching)
	return nil
}

// Logout ends the backend session. The stored token and logged-in flag are
// only cleared once the backend accepted the logout.
func (a *Accounts) Logout(ctx context.Context, session *Session, ui Surface) error {
	token, err := a.token(ctx, session, ui)
	if err != nil {
		return err
	}

	if err := a.backend.Logout(ctx, token); err != nil {
		a.report(session, ui, "logout", err)
		return err
	}

	if err := a.persister.Clear(ctx, session); err != nil {
		a.report(session, ui, "logout", err)
		return err
	}

	ui.Notify(Notice{Message: a.messages.Get(language(session), MsgLoggedOut)})
	ui.Navigate(DestinationLogin)
	return nil
}

// ForgotPassword asks the backend to mail a new password. The answer does not
// reveal whether the address is known.
func (a *Accounts) ForgotPassword(ctx context.Context, session *Session, ui Notifier, email string) error {
	email = strings.TrimSpace(email)
	lang := language(session)

	if err := validate.Var(email, "required,email"); err != nil {
		return FieldErrors{"email": a.messages.Get(lang, MsgInvalidEmail)}
	}

	sent, err := a.backend.GenerateNewPasswordByMail(ctx, email)
	if err != nil {
		a.report(session, ui, "forgotPassword", err)
		return err
	}

	log.WithFields(log.Fields{"user": session.UserID, "sent": sent}).Debug("Requested password mail")
	ui.Notify(Notice{Message: a.messages.Get(lang, MsgForgotPasswordSent)})
	return nil
}

// ChangePassword sets a new password for the logged-in user. confirmation must
// repeat newPassword.
func (a *Accounts) ChangePassword(ctx context.Context, session *Session, ui Notifier, newPassword, confirmation string) error {
	lang := language(session)

	if newPassword == "" {
		return FieldErrors{"newPassword": a.messages.Get(lang, MsgRequired)}
	}
	if newPassword != confirmation {
		return FieldErrors{"confirmPassword": a.messages.Get(lang, MsgPasswordsDiffer)}
	}

	token, err := a.token(ctx, session, ui)
	if err != nil {
		return err
	}

	if err := a.backend.ChangePassword(ctx, token, newPassword); err != nil {
		log.WithError(err).WithField("user", session.UserID).Warn("Password change failed")
		ui.Notify(Notice{Variant: NoticeDestructive, Message: a.messages.Get(lang, MsgChangePasswordError)})
		return err
	}

	ui.Notify(Notice{Message: a.messages.Get(lang, MsgChangePasswordSuccess)})
	return nil
}

// LoggedIn reports whether the user of session is already logged in. Lookup
// failures count as logged out.
func (a *Accounts) LoggedIn(ctx context.Context, session *Session) bool {
	loggedIn, err := a.persister.LoggedIn(ctx, session)
	if err != nil {
		log.WithError(err).WithField("user", session.UserID).Warn("Could not read logged-in flag")
		return false
	}
	return loggedIn
}

func (a *Accounts) token(ctx context.Context, session *Session, ui Notifier) (string, error) {
	token, err := a.persister.Token(ctx, session.UserID)
	if err != nil {
		a.report(session, ui, "token", err)
		return "", err
	}
	if token == "" {
		ui.Notify(Notice{Variant: NoticeDestructive, Message: a.messages.Get(language(session), MsgNotLoggedIn)})
		return "", ErrNotLoggedIn
	}
	return token, nil
}

func (a *Accounts) report(session *Session, ui Notifier, operation string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"user":      session.UserID,
		"operation": operation,
	}).Error("Account operation failed")
	ui.Notify(Notice{Variant: NoticeDestructive, Message: a.messages.Get(language(session), MsgGenericError)})
}
