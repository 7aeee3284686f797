package main

import (
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zekroTJA/timedmap"
)

// ErrStepInProgress is returned when a workflow step is started while another
// one of the same session is still waiting on the backend.
var ErrStepInProgress = errors.New("a previous step is still in progress")

// Session is one user's pass through the signup flow: the registration store,
// the workflow state and the client cookies.
type Session struct {
	UserID string
	Store  *RegistrationStore
	Jar    http.CookieJar

	mu    sync.Mutex
	state WorkflowState
	busy  bool
	draft FormValues
	held  []Notice
}

func newSession(userID string, store *RegistrationStore) *Session {
	jar, _ := cookiejar.New(nil)
	return &Session{UserID: userID, Store: store, Jar: jar}
}

func (s *Session) State() WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state WorkflowState) WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.state
	s.state = state
	return previous
}

// begin claims the session for one step. It fails while another step runs,
// which stands in for the disabled submit control of a form.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// Draft returns the form as typed so far across the form steps.
func (s *Session) Draft() FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) UpdateDraft(fn func(form *FormValues)) FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
	return s.draft
}

// Hold keeps a notice for the next message the session gets. Responses that
// open a modal cannot carry one.
func (s *Session) Hold(notice Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = append(s.held, notice)
}

// TakeHeld returns the held notices and forgets them.
func (s *Session) TakeHeld() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.held
	s.held = nil
	return held
}

// HasCookie reports whether the session jar holds a non-expired cookie called
// name for target.
func (s *Session) HasCookie(target *url.URL, name string) bool {
	if target == nil {
		return false
	}
	for _, cookie := range s.Jar.Cookies(target) {
		if cookie.Name == name {
			return true
		}
	}
	return false
}

// SessionRegistry keeps a session per user for a limited time. An expired
// session is gone the way a reloaded page forgets its form.
type SessionRegistry struct {
	sessions *timedmap.TimedMap
	ttl      time.Duration
	locale   string
	geo      Geolocation
}

func NewSessionRegistry(ttl time.Duration, locale string, geo Geolocation) *SessionRegistry {
	return &SessionRegistry{
		sessions: timedmap.New(time.Minute),
		ttl:      ttl,
		locale:   locale,
		geo:      geo,
	}
}

// Start replaces any existing session of userID with a fresh one.
func (r *SessionRegistry) Start(userID string) *Session {
	store := NewRegistrationStore(r.locale, "")
	if r.geo.IP != "" {
		store.SetClientIP(r.geo.IP)
	}
	session := newSession(userID, store)

	// Contains expires a stale entry first, so its callback has already run.
	replaced := r.sessions.Contains(userID)

	// The callback runs under the map's lock, so it must not call back into it.
	r.sessions.Set(userID, session, r.ttl, func(value interface{}) {
		log.WithField("user", userID).Debug("Registration session expired")
		SessionEnded()
	})
	if !replaced {
		SessionStarted()
	}
	return session
}

// Get returns the live session of userID and extends its lifetime.
func (r *SessionRegistry) Get(userID string) (*Session, bool) {
	session, ok := r.sessions.GetValue(userID).(*Session)
	if !ok {
		return nil, false
	}
	if err := r.sessions.Refresh(userID, r.ttl); err != nil {
		log.WithError(err).WithField("user", userID).Debug("Could not refresh session")
	}
	return session, true
}

func (r *SessionRegistry) GetOrStart(userID string) *Session {
	if session, ok := r.Get(userID); ok {
		return session
	}
	return r.Start(userID)
}

// Country returns the geolocated country code used as the form default.
func (r *SessionRegistry) Country() string {
	return r.geo.CountryCode
}

func (r *SessionRegistry) Stop() {
	r.sessions.StopCleaner()
}
