package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// ErrNotLoggedIn is returned by operations that need a session token when none
// is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// BackendError is a non-2xx answer from the backend or a body that could not be
// understood.
type BackendError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: malformed response: %s", e.Operation, e.Body)
	}
	return fmt.Sprintf("%s: backend answered %d: %s", e.Operation, e.StatusCode, e.Body)
}

// BackendClient talks to the streaming service API. Every endpoint answers with
// a {success, data} envelope.
type BackendClient struct {
	baseURL        string
	client         *http.Client
	requestCounter atomic.Uint64
}

// NewBackendClient creates a client for the API rooted at baseURL.
func NewBackendClient(baseURL string, timeout time.Duration) (*BackendClient, error) {
	cookies, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &BackendClient{
		baseURL: baseURL,
		client:  &http.Client{Jar: cookies, Timeout: timeout},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (b *BackendClient) onRequest(req *http.Request) {
	count := b.requestCounter.Add(1)
	log.WithFields(log.Fields{
		"method":    req.Method,
		"url":       req.URL.String(),
		"requestId": req.Header.Get("X-Request-Id"),
		"count":     count,
	}).Debug("Backend request")
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Trace(DebugRequest(req))
	}
}

func onResponse(res *http.Response) {
	log.WithFields(log.Fields{
		"status":      res.Status,
		"length":      res.ContentLength,
		"contentType": res.Header.Get("Content-Type"),
	}).Debug("Backend response")
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Trace(DebugResponse(res))
	}
}

// do sends req and decodes the envelope's data into out. A null or missing
// data member leaves out untouched.
func (b *BackendClient) do(operation string, req *http.Request, out any) error {
	b.onRequest(req)
	res, err := b.client.Do(req)
	if err != nil {
		RecordBackendRequest(operation, "transport_error")
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer res.Body.Close()
	onResponse(res)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		RecordBackendRequest(operation, "transport_error")
		return fmt.Errorf("%s: reading body: %w", operation, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		RecordBackendRequest(operation, "http_error")
		return &BackendError{Operation: operation, StatusCode: res.StatusCode, Body: truncate(string(body), 256)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		RecordBackendRequest(operation, "decode_error")
		return &BackendError{Operation: operation, Body: truncate(string(body), 256)}
	}
	RecordBackendRequest(operation, "ok")

	if out == nil || isNull(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &BackendError{Operation: operation, Body: truncate(string(env.Data), 256)}
	}
	return nil
}

func (b *BackendClient) post(ctx context.Context, operation string, path string, payload any, out any) error {
	req, err := BuildJSONRequest(ctx, http.MethodPost, b.baseURL, path, payload)
	if err != nil {
		return err
	}
	return b.do(operation, req, out)
}

func (b *BackendClient) get(ctx context.Context, operation string, path string, params map[string]string, out any) error {
	req, err := BuildRequest(ctx, http.MethodGet, b.baseURL, path, params)
	if err != nil {
		return err
	}
	return b.do(operation, req, out)
}

// CheckRegistrationPermission asks whether an account already uses the given
// identity. The returned data is nil when registration is allowed.
func (b *BackendClient) CheckRegistrationPermission(ctx context.Context, request PermissionRequest) (json.RawMessage, error) {
	var data json.RawMessage
	if err := b.post(ctx, "checkRegistrationPermission", "/allowLeadRegistration", request, &data); err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}
	return data, nil
}

func (b *BackendClient) RegisterUser(ctx context.Context, data ClientRegistrationData, challengeToken string) (*RegistrationResponse, error) {
	payload := struct {
		ClientRegistrationData
		GoogleCaptcha string `json:"googleCaptcha"`
	}{data, challengeToken}

	var res RegistrationResponse
	if err := b.post(ctx, "registerUser", "/register", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *BackendClient) SendPhoneVerificationCodeAndCreateLead(ctx context.Context, lead LeadData, challengeToken string) (*PhoneVerificationResponse, error) {
	payload := struct {
		GoogleCaptcha string   `json:"googleCaptcha"`
		LeadData      LeadData `json:"leadData"`
	}{challengeToken, lead}

	var res PhoneVerificationResponse
	if err := b.post(ctx, "sendPhoneVerificationCodeAndCreateLead", "/sendPhoneVerificationCodeAndCreateLead", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *BackendClient) GetLead(ctx context.Context, leadID string) (*LeadRecord, error) {
	var lead LeadRecord
	if err := b.get(ctx, "getLead", "/getLead", map[string]string{"leadId": leadID}, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (b *BackendClient) Login(ctx context.Context, creds LoginCredentials) (*LoginResponse, error) {
	var res LoginResponse
	if err := b.post(ctx, "login", "/login", creds, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *BackendClient) Logout(ctx context.Context, token string) error {
	return b.post(ctx, "logout", "/logout", map[string]string{"token": token}, nil)
}

// GenerateNewPasswordByMail triggers the forgotten password mail. The backend
// answers whether a mail was sent.
func (b *BackendClient) GenerateNewPasswordByMail(ctx context.Context, email string) (bool, error) {
	var sent bool
	if err := b.post(ctx, "forgotPassword", "/generateNewPasswordByMail", map[string]string{"email": email}, &sent); err != nil {
		return false, err
	}
	return sent, nil
}

func (b *BackendClient) ChangePassword(ctx context.Context, token string, newPassword string) error {
	return b.post(ctx, "changePassword", "/changePass", map[string]string{"newPassword": newPassword, "token": token}, nil)
}

func (b *BackendClient) GetCountries(ctx context.Context) ([]Country, error) {
	var countries []Country
	if err := b.get(ctx, "getCountries", "/getCountries", nil, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

func (b *BackendClient) SearchSubscriptions(ctx context.Context, token string) ([]Subscription, error) {
	var subscriptions []Subscription
	if err := b.post(ctx, "searchSubscriptions", "/searchSubscriptions", map[string]string{"token": token}, &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (b *BackendClient) SearchClient(ctx context.Context, token string) (*ClientProfile, error) {
	var client ClientProfile
	if err := b.post(ctx, "searchClient", "/searchClient", map[string]string{"token": token}, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (b *BackendClient) GetBrandConfig(ctx context.Context) (*BrandConfig, error) {
	var brand BrandConfig
	if err := b.get(ctx, "getBrandConfig", "/getBrandConfig", nil, &brand); err != nil {
		return nil, err
	}
	return &brand, nil
}

// GetPaymentPage opens a transaction for pack, applying its promo code if it
// has one.
func (b *BackendClient) GetPaymentPage(ctx context.Context, token string, pack SubscriptionPackage) (*PaymentPage, error) {
	payload := struct {
		PackageID json.RawMessage `json:"packageId"`
		Token     string          `json:"token"`
		PromoCode *string         `json:"promoCode,omitempty"`
	}{PackageID: pack.Value, Token: token}
	if pack.Promo != nil && pack.Promo.PromoCode != "" {
		payload.PromoCode = &pack.Promo.PromoCode
	}

	var page PaymentPage
	if err := b.post(ctx, "getPaymentPage", "/getPaymentPage", payload, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAvailablePaymentMethods names the transaction both in the query and in
// the body.
func (b *BackendClient) GetAvailablePaymentMethods(ctx context.Context, transactionID string) (*PaymentMethods, error) {
	path := "/getAvailablePaymentMethods?" + url.Values{"transactionId": {transactionID}}.Encode()

	var methods PaymentMethods
	if err := b.post(ctx, "getAvailablePaymentMethods", path, map[string]string{"transactionId": transactionID}, &methods); err != nil {
		return nil, err
	}
	return &methods, nil
}

func (b *BackendClient) GetCryptoAddress(ctx context.Context, transactionID string, coin string) (*CryptoAddress, error) {
	var address CryptoAddress
	payload := map[string]string{"coin": coin, "transactionId": transactionID}
	if err := b.post(ctx, "getCryptoAddress", "/getCryptoAddress", payload, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

func (b *BackendClient) CloseIdleConnections() {
	b.client.CloseIdleConnections()
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// truncate shortens s to at most n bytes plus an ellipsis, cutting only at a
// rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
