package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   map[string]any
}

// newTestAPI serves each path with a canned body and records the requests.
func newTestAPI(t *testing.T, status int, bodies map[string]string) (*BackendClient, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	router := mux.NewRouter()
	for path, body := range bodies {
		body := body
		router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			recorded := recordedRequest{
				method: r.Method,
				path:   r.URL.Path,
				query:  r.URL.Query(),
				header: r.Header.Clone(),
			}
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				assert.NoError(t, json.Unmarshal(raw, &recorded.body))
			}
			requests = append(requests, recorded)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		})
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	client, err := NewBackendClient(server.URL, 5*time.Second)
	require.NoError(t, err)
	return client, &requests
}

func TestCheckRegistrationPermissionEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"null data", `{"success":true,"data":null}`, ""},
		{"missing data", `{"success":true}`, ""},
		{"collision", `{"success":true,"data":{"byEmail":"ada@example.com"}}`, `{"byEmail":"ada@example.com"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, requests := newTestAPI(t, http.StatusOK, map[string]string{"/allowLeadRegistration": test.body})

			data, err := client.CheckRegistrationPermission(context.Background(), PermissionRequest{
				Email:       "ada@example.com",
				PhoneNumber: "+12015550123",
				Username:    "ada1815",
				IsTrial:     true,
			})
			require.NoError(t, err)
			if test.expected == "" {
				assert.Nil(t, data)
			} else {
				assert.JSONEq(t, test.expected, string(data))
			}

			require.Len(t, *requests, 1)
			request := (*requests)[0]
			assert.Equal(t, http.MethodPost, request.method)
			assert.Equal(t, "application/json", request.header.Get("Content-Type"))
			assert.NotEmpty(t, request.header.Get("X-Request-Id"))
			assert.Equal(t, map[string]any{
				"email":       "ada@example.com",
				"phoneNumber": "+12015550123",
				"username":    "ada1815",
				"isTrial":     true,
			}, request.body)
		})
	}
}

func TestRegisterUserResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		token     string
		redirect  bool
		softError bool
	}{
		{"token", `{"success":true,"data":{"token":"abc","shouldRedirect":true}}`, "abc", true, false},
		{"error101 with value", `{"success":true,"data":{"error101":"blocked"}}`, "", false, true},
		{"error101 null", `{"success":true,"data":{"error101":null}}`, "", false, true},
		{"no token", `{"success":true,"data":{}}`, "", false, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client, requests := newTestAPI(t, http.StatusOK, map[string]string{"/register": test.body})

			data := NewRegistrationStore("en-US", "").Snapshot()
			data.Email = "ada@example.com"
			res, err := client.RegisterUser(context.Background(), data, "challenge-token")
			require.NoError(t, err)

			assert.Equal(t, test.token, res.Token)
			assert.Equal(t, test.redirect, res.ShouldRedirect)
			assert.Equal(t, test.softError, res.SoftError())

			body := (*requests)[0].body
			assert.Equal(t, "challenge-token", body["googleCaptcha"])
			assert.Equal(t, "ada@example.com", body["email"])
			assert.Equal(t, "whatsapp", body["sendingMethod"])
			assert.Contains(t, body, "leadId")
			assert.Nil(t, body["leadId"])
		})
	}
}

func TestSendPhoneVerificationDecodesIdentifiers(t *testing.T) {
	client, requests := newTestAPI(t, http.StatusOK, map[string]string{
		"/sendPhoneVerificationCodeAndCreateLead": `{"success":true,"data":{"leadId":42,"codeId":"c-9","switchClientToSms":true,"alreadyExist":true,"byPhone":"+12015550123"}}`,
	})

	res, err := client.SendPhoneVerificationCodeAndCreateLead(context.Background(), LeadData{Phone: "+12015550123"}, "challenge-token")
	require.NoError(t, err)

	assert.Equal(t, "42", res.LeadID.String())
	assert.Equal(t, "c-9", res.CodeID.String())
	assert.True(t, res.SwitchClientToSms)
	assert.True(t, res.AlreadyExist)
	assert.Equal(t, CollisionPhone, res.collision())
	assert.Empty(t, res.Error101)

	body := (*requests)[0].body
	assert.Equal(t, "challenge-token", body["googleCaptcha"])
	require.IsType(t, map[string]any{}, body["leadData"])
	assert.Equal(t, "+12015550123", body["leadData"].(map[string]any)["phone"])
}

func TestGetLeadQuery(t *testing.T) {
	client, requests := newTestAPI(t, http.StatusOK, map[string]string{
		"/getLead": `{"success":true,"data":{"id":42,"firstName":"Ada","subSource":"newsletter"}}`,
	})

	lead, err := client.GetLead(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "42", lead.ID.String())
	assert.Equal(t, "Ada", *lead.FirstName)
	assert.Nil(t, lead.LastName)
	assert.Equal(t, "newsletter", *lead.SubSource)

	request := (*requests)[0]
	assert.Equal(t, http.MethodGet, request.method)
	assert.Equal(t, []string{"42"}, request.query["leadId"])
}

func TestAccountEndpoints(t *testing.T) {
	client, requests := newTestAPI(t, http.StatusOK, map[string]string{
		"/login":                     `{"success":true,"data":{"token":"abc"}}`,
		"/logout":                    `{"success":true,"data":null}`,
		"/generateNewPasswordByMail": `{"success":true,"data":true}`,
		"/changePass":                `{"success":true,"data":null}`,
		"/getCountries":              `{"success":true,"data":[{"code":"US","name":"United States","states":[{"code":"CA","name":"California"}]}]}`,
	})
	ctx := context.Background()

	login, err := client.Login(ctx, LoginCredentials{Username: "ada1815", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "abc", login.Token)

	require.NoError(t, client.Logout(ctx, "abc"))

	sent, err := client.GenerateNewPasswordByMail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, sent)

	require.NoError(t, client.ChangePassword(ctx, "abc", "new-secret"))

	countries, err := client.GetCountries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "CA", countries[0].States[0].Code)

	require.Len(t, *requests, 5)
	assert.Equal(t, map[string]any{"username": "ada1815", "password": "secret"}, (*requests)[0].body)
	assert.Equal(t, map[string]any{"token": "abc"}, (*requests)[1].body)
	assert.Equal(t, map[string]any{"email": "ada@example.com"}, (*requests)[2].body)
	assert.Equal(t, map[string]any{"token": "abc", "newPassword": "new-secret"}, (*requests)[3].body)
	assert.Equal(t, http.MethodGet, (*requests)[4].method)
}

func TestBackendErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		client, _ := newTestAPI(t, http.StatusInternalServerError, map[string]string{"/register": `{"message":"boom"}`})

		_, err := client.RegisterUser(context.Background(), ClientRegistrationData{}, "")
		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, "registerUser", backendErr.Operation)
		assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
		assert.Contains(t, backendErr.Body, "boom")
	})

	t.Run("malformed envelope", func(t *testing.T) {
		client, _ := newTestAPI(t, http.StatusOK, map[string]string{"/getCountries": `<html>`})

		_, err := client.GetCountries(context.Background())
		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Zero(t, backendErr.StatusCode)
		assert.Contains(t, err.Error(), "malformed response")
	})

	t.Run("unexpected data shape", func(t *testing.T) {
		client, _ := newTestAPI(t, http.StatusOK, map[string]string{"/getCountries": `{"success":true,"data":"nope"}`})

		_, err := client.GetCountries(context.Background())
		var backendErr *BackendError
		assert.True(t, errors.As(err, &backendErr))
	})

	t.Run("transport", func(t *testing.T) {
		client, err := NewBackendClient("http://127.0.0.1:1", time.Second)
		require.NoError(t, err)

		_, err = client.GetCountries(context.Background())
		assert.Error(t, err)
		var backendErr *BackendError
		assert.False(t, errors.As(err, &backendErr))
	})
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`4.5`, "4.5"},
		{`null`, ""},
	}

	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			var value flexString
			require.NoError(t, json.Unmarshal([]byte(test.raw), &value))
			assert.Equal(t, test.expected, value.String())
		})
	}

	var value flexString
	assert.Error(t, json.Unmarshal([]byte(`{}`), &value))
}

func TestSubscriptionEndpoints(t *testing.T) {
	client, requests := newTestAPI(t, http.StatusOK, map[string]string{
		"/searchSubscriptions":        `{"success":true,"data":[{"id":3,"packageName":"1 month","expireDate":"2026-12-31"}]}`,
		"/searchClient":               `{"success":true,"data":{"username":"ada1815","email":"ada@example.com"}}`,
		"/getBrandConfig":             `{"success":true,"data":{"brandName":"StreamTV","packages":[{"value":7,"label":"1 month","price":15,"currency":"USD","promo":{"promoCode":"SPRING"}}]}}`,
		"/getPaymentPage":             `{"success":true,"data":{"transactionId":991,"paymentUrl":"https://pay.example.com/991","amount":12.5}}`,
		"/getAvailablePaymentMethods": `{"success":true,"data":{"creditCard":true,"crypto":["BTC"]}}`,
		"/getCryptoAddress":           `{"success":true,"data":{"coin":"BTC","address":"bc1qexample","amount":0.0021}}`,
	})
	ctx := context.Background()

	subscriptions, err := client.SearchSubscriptions(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "3", subscriptions[0].ID.String())

	profile, err := client.SearchClient(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ada1815", profile.Username)

	brand, err := client.GetBrandConfig(ctx)
	require.NoError(t, err)
	require.Len(t, brand.Packages, 1)
	assert.Equal(t, "7", brand.Packages[0].ID())

	page, err := client.GetPaymentPage(ctx, "abc", brand.Packages[0])
	require.NoError(t, err)
	assert.Equal(t, "991", page.TransactionID.String())
	assert.Equal(t, 12.5, page.Amount)

	methods, err := client.GetAvailablePaymentMethods(ctx, "991")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, methods.Crypto)

	address, err := client.GetCryptoAddress(ctx, "991", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "bc1qexample", address.Address)
	assert.Equal(t, "0.0021", address.Amount.String())

	require.Len(t, *requests, 6)
	assert.Equal(t, map[string]any{"token": "abc"}, (*requests)[0].body)
	assert.Equal(t, map[string]any{"token": "abc"}, (*requests)[1].body)
	assert.Equal(t, http.MethodGet, (*requests)[2].method)
	assert.Equal(t, map[string]any{"packageId": float64(7), "token": "abc", "promoCode": "SPRING"}, (*requests)[3].body)
	assert.Equal(t, []string{"991"}, (*requests)[4].query["transactionId"])
	assert.Equal(t, map[string]any{"transactionId": "991"}, (*requests)[4].body)
	assert.Equal(t, map[string]any{"coin": "BTC", "transactionId": "991"}, (*requests)[5].body)
}

func TestGetPaymentPageWithoutPromo(t *testing.T) {
	client, requests := newTestAPI(t, http.StatusOK, map[string]string{
		"/getPaymentPage": `{"success":true,"data":{"transactionId":"tx-1","amount":0}}`,
	})

	page, err := client.GetPaymentPage(context.Background(), "abc", SubscriptionPackage{Value: json.RawMessage(`"annual"`)})
	require.NoError(t, err)
	assert.Zero(t, page.Amount)
	assert.Equal(t, map[string]any{"packageId": "annual", "token": "abc"}, (*requests)[0].body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	cut := truncate("ñññ", 3)
	assert.Equal(t, "ñ...", cut)
	assert.True(t, utf8.ValidString(cut))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("€", 400), 1000)))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("€", 400), 1001)))
}
