package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wandernest-backend/internal/models"
)

// ChatProvider is one upstream language-model service. Implementations
// normalize their native reply into a NormalizedReply and return
// *ProviderError for every failure.
type ChatProvider interface {
	Name() string
	Model() string
	// Configured reports whether the credential (or endpoint, for local
	// daemons) is present. It never touches the network.
	Configured() bool
	Chat(ctx context.Context, messages []models.ChatMessage) (*models.NormalizedReply, error)
}

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrorKindConfig    ErrorKind = "missing_credential"
	ErrorKindAuth      ErrorKind = "auth_failed"
	ErrorKindUpstream  ErrorKind = "upstream_error"
	ErrorKindMalformed ErrorKind = "malformed_response"
	ErrorKindNetwork   ErrorKind = "network_error"
	ErrorKindTimeout   ErrorKind = "timeout"
)

// ProviderError is the classified failure of a single provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Details  interface{}
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsAuthFailure is true for a missing credential or an upstream 401/403.
// Only these failures move the relay on to the local secondary provider.
func (e *ProviderError) IsAuthFailure() bool {
	return e.Kind == ErrorKindConfig || e.Kind == ErrorKindAuth
}

// HTTPStatus is the status the HTTP layer renders when fallback is disabled.
func (e *ProviderError) HTTPStatus() int {
	switch e.Kind {
	case ErrorKindConfig:
		return http.StatusInternalServerError
	case ErrorKindAuth, ErrorKindUpstream:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	case ErrorKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func missingCredential(provider string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     ErrorKindConfig,
		Status:   http.StatusUnauthorized,
		Err:      errors.New("no API key configured"),
	}
}

// statusError builds the error for a non-2xx upstream response. The body is
// kept as parsed JSON when possible, raw text otherwise.
func statusError(provider string, status int, body []byte) *ProviderError {
	kind := ErrorKindUpstream
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = ErrorKindAuth
	}

	var details interface{}
	if err := json.Unmarshal(body, &details); err != nil {
		details = strings.TrimSpace(string(body))
	}

	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Status:   status,
		Details:  details,
		Err:      fmt.Errorf("upstream returned %s", http.StatusText(status)),
	}
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, provider string, err error) *ProviderError {
	kind := ErrorKindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrorKindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func malformed(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKindMalformed, Err: err}
}

// postJSON sends one POST and returns the body of a 2xx response. It never
// retries.
func postJSON(ctx context.Context, client *http.Client, provider, url string, payload interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, malformed(provider, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, transportError(ctx, provider, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, provider, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(provider, resp.StatusCode, body)
	}
	return body, nil
}
