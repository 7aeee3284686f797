package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nyaruka/phonenumbers"
)

// fakeBackend answers every API call from canned values and records what it
// was asked.
type fakeBackend struct {
	mu sync.Mutex

	permission      json.RawMessage
	permissionErr   error
	register        *RegistrationResponse
	registerErr     error
	verification    *PhoneVerificationResponse
	verificationErr error
	lead            *LeadRecord
	leadErr         error
	countries       []Country
	countriesErr    error
	login           *LoginResponse
	loginErr        error
	logoutErr       error
	changeErr       error
	mailSent        bool

	subscriptions    []Subscription
	subscriptionsErr error
	client           *ClientProfile
	brand            *BrandConfig
	brandErr         error
	paymentPage      *PaymentPage
	paymentErr       error
	paymentMethods   *PaymentMethods
	paymentMethodErr error
	cryptoAddress    *CryptoAddress
	cryptoErr        error

	calls              []string
	permissionRequests []PermissionRequest
	registrations      []ClientRegistrationData
	leads              []LeadData
	challengeTokens    []string
	logoutTokens       []string
	changedPasswords   []string
	purchases          []SubscriptionPackage
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CheckRegistrationPermission(ctx context.Context, request PermissionRequest) (json.RawMessage, error) {
	f.record("checkRegistrationPermission")
	f.permissionRequests = append(f.permissionRequests, request)
	return f.permission, f.permissionErr
}

func (f *fakeBackend) RegisterUser(ctx context.Context, data ClientRegistrationData, challengeToken string) (*RegistrationResponse, error) {
	f.record("registerUser")
	f.registrations = append(f.registrations, data)
	f.challengeTokens = append(f.challengeTokens, challengeToken)
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if f.register == nil {
		return &RegistrationResponse{}, nil
	}
	return f.register, nil
}

func (f *fakeBackend) SendPhoneVerificationCodeAndCreateLead(ctx context.Context, lead LeadData, challengeToken string) (*PhoneVerificationResponse, error) {
	f.record("sendPhoneVerificationCodeAndCreateLead")
	f.leads = append(f.leads, lead)
	f.challengeTokens = append(f.challengeTokens, challengeToken)
	if f.verificationErr != nil {
		return nil, f.verificationErr
	}
	if f.verification == nil {
		return &PhoneVerificationResponse{}, nil
	}
	return f.verification, nil
}

func (f *fakeBackend) GetLead(ctx context.Context, leadID string) (*LeadRecord, error) {
	f.record("getLead")
	if f.leadErr != nil {
		return nil, f.leadErr
	}
	return f.lead, nil
}

func (f *fakeBackend) GetCountries(ctx context.Context) ([]Country, error) {
	f.record("getCountries")
	return f.countries, f.countriesErr
}

func (f *fakeBackend) Login(ctx context.Context, creds LoginCredentials) (*LoginResponse, error) {
	f.record("login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.login, nil
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.record("logout")
	f.logoutTokens = append(f.logoutTokens, token)
	return f.logoutErr
}

func (f *fakeBackend) GenerateNewPasswordByMail(ctx context.Context, email string) (bool, error) {
	f.record("forgotPassword")
	return f.mailSent, nil
}

func (f *fakeBackend) ChangePassword(ctx context.Context, token string, newPassword string) error {
	f.record("changePassword")
	f.changedPasswords = append(f.changedPasswords, newPassword)
	return f.changeErr
}

func (f *fakeBackend) SearchSubscriptions(ctx context.Context, token string) ([]Subscription, error) {
	f.record("searchSubscriptions")
	return f.subscriptions, f.subscriptionsErr
}

func (f *fakeBackend) SearchClient(ctx context.Context, token string) (*ClientProfile, error) {
	f.record("searchClient")
	if f.client == nil {
		return &ClientProfile{}, nil
	}
	return f.client, nil
}

func (f *fakeBackend) GetBrandConfig(ctx context.Context) (*BrandConfig, error) {
	f.record("getBrandConfig")
	if f.brandErr != nil {
		return nil, f.brandErr
	}
	if f.brand == nil {
		return &BrandConfig{}, nil
	}
	return f.brand, nil
}

func (f *fakeBackend) GetPaymentPage(ctx context.Context, token string, pack SubscriptionPackage) (*PaymentPage, error) {
	f.record("getPaymentPage")
	f.purchases = append(f.purchases, pack)
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	return f.paymentPage, nil
}

func (f *fakeBackend) GetAvailablePaymentMethods(ctx context.Context, transactionID string) (*PaymentMethods, error) {
	f.record("getAvailablePaymentMethods")
	return f.paymentMethods, f.paymentMethodErr
}

func (f *fakeBackend) GetCryptoAddress(ctx context.Context, transactionID string, coin string) (*CryptoAddress, error) {
	f.record("getCryptoAddress")
	if f.cryptoErr != nil {
		return nil, f.cryptoErr
	}
	return f.cryptoAddress, nil
}

type fakeSurface struct {
	notices      []Notice
	destinations []Destination
}

func (f *fakeSurface) Notify(notice Notice) {
	f.notices = append(f.notices, notice)
}

func (f *fakeSurface) Navigate(destination Destination) {
	f.destinations = append(f.destinations, destination)
}

func (f *fakeSurface) messages() []string {
	out := make([]string, 0, len(f.notices))
	for _, notice := range f.notices {
		out = append(out, notice.Message)
	}
	return out
}

type fakeChallenge struct {
	token string
	err   error
	calls int
}

func (f *fakeChallenge) Token(ctx context.Context, action string) (string, error) {
	f.calls++
	return f.token, f.err
}

// memoryPersister keeps tokens in memory.
type memoryPersister struct {
	tokens     map[string]string
	loggedIn   map[string]bool
	persistErr error
	clearErr   error
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{tokens: map[string]string{}, loggedIn: map[string]bool{}}
}

func (m *memoryPersister) Persist(ctx context.Context, session *Session, token string) error {
	if m.persistErr != nil {
		return m.persistErr
	}
	m.tokens[session.UserID] = token
	m.loggedIn[session.UserID] = true
	return nil
}

func (m *memoryPersister) Clear(ctx context.Context, session *Session) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.tokens, session.UserID)
	delete(m.loggedIn, session.UserID)
	return nil
}

func (m *memoryPersister) Token(ctx context.Context, userID string) (string, error) {
	return m.tokens[userID], nil
}

func (m *memoryPersister) LoggedIn(ctx context.Context, session *Session) (bool, error) {
	return m.loggedIn[session.UserID], nil
}

// examplePhone is a number libphonenumber itself considers valid for region.
func examplePhone(region string) string {
	return phonenumbers.Format(phonenumbers.GetExampleNumber(region), phonenumbers.E164)
}

func validForm() FormValues {
	return FormValues{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada1815",
		Email:     "ada@example.com",
		Country:   "US",
		Agreement: true,
	}
}

func newTestSession(userID string) *Session {
	return newSession(userID, NewRegistrationStore("en-US", "203.0.113.7"))
}
