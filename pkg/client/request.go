package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// Request is one logical call to the Lever API.
type Request struct {
	// Operation names the facade operation, used in logs and errors.
	Operation string

	Method string

	// Path is relative to the base URL, with ids already escaped.
	Path string

	// Route is Path with ids replaced by placeholders. It labels metrics
	// and spans so they stay low-cardinality. Defaults to Path.
	Route string

	Query url.Values

	// Body is encoded as JSON when non-nil.
	Body any
}

func (r *Request) route() string {
	if r.Route != "" {
		return r.Route
	}
	return r.Path
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Response is a successful Lever response with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	operation string
	route     string
}

// Decode unmarshals the JSON body into v. A malformed body yields a
// permanent *APIError of class decode.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &APIError{
			Operation:  r.operation,
			Route:      r.route,
			StatusCode: r.StatusCode,
			Class:      ErrorClassDecode,
			Message:    fmt.Sprintf("decode response: %v", err),
			Body:       snippet(r.Body),
		}
	}
	return nil
}

// newHTTPRequest builds the outbound request with credentials and headers.
func (e *Executor) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	u, err := url.Parse(e.baseURL + req.Path)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	switch e.config.AuthScheme {
	case AuthBearer:
		httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	default:
		// Lever documents basic auth with the key as username.
		httpReq.SetBasicAuth(e.config.APIKey, "")
	}
	httpReq.Header.Set("User-Agent", e.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return httpReq, nil
}

// isJSON reports whether a response body can be treated as JSON.
func isJSON(contentType string, body []byte) bool {
	if contentType == "" {
		return json.Valid(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// errorMessage extracts Lever's error message from a response body.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Code != "":
			return payload.Code
		}
	}
	return http.StatusText(status)
}

func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
