// Package backend talks to the external storefront HTTP backend. Every call
// returns either its success payload or an error that is a *RejectionError
// (the backend said no) or wraps ErrMalformedPayload (the answer cannot be
// trusted). Nothing from a malformed answer reaches the session store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusVerified is the status value the backend uses for a successful login or OTP check
const StatusVerified = "VERIFIED"

var ErrMalformedPayload = errors.New("malformed backend payload")

// RejectionError is a well-formed refusal from the backend
type RejectionError struct {
	StatusCode int    // HTTP status
	Status     string // "status" field of the body, if any
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("backend rejected request (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

// IsRejection reports whether err is a backend rejection and returns it
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Client represents an HTTP client for the storefront backend
type Client struct {
	baseURL    string
	oauthURL   string
	httpClient *http.Client
}

// New creates a new backend client
func New(baseURL, oauthURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		oauthURL: oauthURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// OAuthURL is where the browser goes to start the third-party login
func (c *Client) OAuthURL() string {
	return c.oauthURL
}

// messageBody is the common envelope of backend answers
type messageBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (m messageBody) text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}

// call performs a request. credential, when set, is sent as the Cookie header.
// out may be nil. It returns the cookies the backend set.
func (c *Client) call(ctx context.Context, method, path, credential string, body, out any) ([]*http.Cookie, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Cookie", credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg messageBody
		_ = json.Unmarshal(raw, &msg)
		text := msg.text()
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, &RejectionError{StatusCode: resp.StatusCode, Status: msg.Status, Message: text}
	}

	if out != nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, malformed("%s %s: empty body", method, path)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, malformed("%s %s: %v", method, path, err)
		}
	}

	return resp.Cookies(), nil
}

// CookieHeader joins cookies into a Cookie request header value
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
