package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DebugRequest renders a request with its headers and body. The body is
// restored afterwards so the request can still be sent.
func DebugRequest(req *http.Request) string {
	var str strings.Builder
	fmt.Fprintf(&str, "[%s %s]", req.Method, req.URL.String())
	writeHeaders(&str, req.Header)

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		writeBody(&str, "request", body, err)
	}

	return str.String()
}

// DebugResponse renders a response the same way as DebugRequest, restoring the
// body for the caller.
func DebugResponse(res *http.Response) string {
	var str strings.Builder
	target := ""
	if res.Request != nil {
		target = " " + res.Request.URL.String()
	}
	fmt.Fprintf(&str, "[%s%s]", res.Status, target)
	writeHeaders(&str, res.Header)

	if res.Body != nil {
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		res.Body = io.NopCloser(bytes.NewReader(body))
		writeBody(&str, "response", body, err)
	}

	return str.String()
}

func writeHeaders(str *strings.Builder, headers http.Header) {
	for name, values := range headers {
		for _, value := range values {
			if strings.EqualFold(name, "Authorization") || strings.EqualFold(name, "Cookie") {
				value = "<redacted>"
			}
			fmt.Fprintf(str, "\n%s: %s", name, value)
		}
	}
}

func writeBody(str *strings.Builder, kind string, body []byte, err error) {
	if err != nil {
		fmt.Fprintf(str, "\n\n {error while reading %s body buffer: %s}", kind, err)
		return
	}
	fmt.Fprintf(str, "\n\n%s", body)
}
