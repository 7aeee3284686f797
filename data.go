package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	tokenKey          = "token"
	loggedInCookie    = "userLoggedIn"
	defaultLoggedDays = 30
)

// SessionPersister keeps the session token and the logged-in flag of a user.
// Both are written and cleared together.
type SessionPersister interface {
	Persist(ctx context.Context, session *Session, token string) error
	Clear(ctx context.Context, session *Session) error
	Token(ctx context.Context, userID string) (string, error)
	LoggedIn(ctx context.Context, session *Session) (bool, error)
}

// ClientState stores session tokens in redis and mirrors the logged-in flag as
// a cookie scoped to the configured domain.
type ClientState struct {
	db           *redis.Client
	domain       string
	loggedInDays int
}

func NewClientState(db *redis.Client, domain string, loggedInDays int) *ClientState {
	if loggedInDays <= 0 {
		loggedInDays = defaultLoggedDays
	}
	return &ClientState{db: db, domain: domain, loggedInDays: loggedInDays}
}

func tokenKeyFor(userID string) string    { return fmt.Sprintf("%s:%s", tokenKey, userID) }
func loggedInKeyFor(userID string) string { return fmt.Sprintf("%s:%s", loggedInCookie, userID) }

// CookieURL is the address the logged-in cookie is scoped to.
func (c *ClientState) CookieURL() *url.URL {
	if c.domain == "" {
		return nil
	}
	return &url.URL{Scheme: "https", Host: strings.TrimPrefix(c.domain, "."), Path: "/"}
}

func (c *ClientState) loggedInTTL() time.Duration {
	return time.Duration(c.loggedInDays) * 24 * time.Hour
}

// Persist stores token under the user's fixed key and marks the user logged in
// for the configured number of days.
func (c *ClientState) Persist(ctx context.Context, session *Session, token string) error {
	ttl := c.loggedInTTL()

	_, err := c.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKeyFor(session.UserID), token, 0)
		pipe.Set(ctx, loggedInKeyFor(session.UserID), "true", ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting session token: %w", err)
	}

	c.setCookie(session, &http.Cookie{
		Name:    loggedInCookie,
		Value:   "true",
		Domain:  c.domain,
		Path:    "/",
		Expires: time.Now().Add(ttl),
	})
	return nil
}

// Clear removes the token and the logged-in flag.
func (c *ClientState) Clear(ctx context.Context, session *Session) error {
	if err := c.db.Del(ctx, tokenKeyFor(session.UserID), loggedInKeyFor(session.UserID)).Err(); err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}

	c.setCookie(session, &http.Cookie{
		Name:   loggedInCookie,
		Value:  "",
		Domain: c.domain,
		Path:   "/",
		MaxAge: -1,
	})
	return nil
}

// Token returns the stored session token, or an empty string when there is
// none.
func (c *ClientState) Token(ctx context.Context, userID string) (string, error) {
	token, err := c.db.Get(ctx, tokenKeyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session token: %w", err)
	}
	return token, nil
}

// LoggedIn reports whether the user is marked as logged in, either by the
// session cookie or by the stored flag.
func (c *ClientState) LoggedIn(ctx context.Context, session *Session) (bool, error) {
	if session.HasCookie(c.CookieURL(), loggedInCookie) {
		return true, nil
	}
	exists, err := c.db.Exists(ctx, loggedInKeyFor(session.UserID)).Result()
	if err != nil {
		return false, fmt.Errorf("reading logged-in flag: %w", err)
	}
	return exists > 0, nil
}

func (c *ClientState) setCookie(session *Session, cookie *http.Cookie) {
	target := c.CookieURL()
	if target == nil {
		log.WithField("user", session.UserID).Debug("No cookie domain configured, skipping logged-in cookie")
		return
	}
	session.Jar.SetCookies(target, []*http.Cookie{cookie})
}
