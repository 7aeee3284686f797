package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"

// BuildRequestWithBody builds a request for path, which is either absolute or
// relative to base. params are appended as an encoded query string.
func BuildRequestWithBody(ctx context.Context, method string, base string, path string, params map[string]string, body io.Reader) (*http.Request, error) {
	target := path
	if !strings.HasPrefix(path, "http") {
		target = base + path
	}

	if len(params) > 0 {
		query := url.Values{}
		for key, value := range params {
			query.Set(key, value)
		}
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}
		target += separator + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, target, err)
	}
	SetTypicalHeaders(request, nil)

	return request, nil
}

// BuildJSONRequest builds a request carrying payload encoded as JSON.
func BuildJSONRequest(ctx context.Context, method string, base string, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := BuildRequestWithBody(ctx, method, base, path, nil, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		contentType := "application/json"
		SetTypicalHeaders(request, &contentType)
	}
	return request, nil
}

func BuildRequest(ctx context.Context, method string, base string, path string, params map[string]string) (*http.Request, error) {
	return BuildRequestWithBody(ctx, method, base, path, params, nil)
}

func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// SetTypicalHeaders sets User-Agent, Accept, X-Request-Id and, when contentType
// is given, Content-Type. An existing request id is kept.
func SetTypicalHeaders(req *http.Request, contentType *string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	if contentType != nil {
		req.Header.Set("Content-Type", *contentType)
	}
}
