package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const challengeAction = "submit"

// ErrChallengeUnavailable is returned when no challenge provider is configured.
var ErrChallengeUnavailable = errors.New("challenge provider is not configured")

// ChallengeProvider hands out proof-of-humanity tokens required by the
// registration endpoints.
type ChallengeProvider interface {
	Token(ctx context.Context, action string) (string, error)
}

// HTTPChallengeProvider requests tokens from a token service that executes the
// challenge for the configured site key.
type HTTPChallengeProvider struct {
	url     string
	siteKey string
	client  *http.Client
}

func NewHTTPChallengeProvider(url, siteKey string, client *http.Client) *HTTPChallengeProvider {
	return &HTTPChallengeProvider{url: url, siteKey: siteKey, client: client}
}

func (p *HTTPChallengeProvider) Token(ctx context.Context, action string) (string, error) {
	if p == nil || p.url == "" {
		return "", ErrChallengeUnavailable
	}

	req, err := BuildJSONRequest(ctx, http.MethodPost, "", p.url, map[string]string{
		"siteKey": p.siteKey,
		"action":  action,
	})
	if err != nil {
		return "", err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting challenge token: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("challenge service answered %s", res.Status)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding challenge token: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("challenge service returned an empty token")
	}
	return body.Token, nil
}
