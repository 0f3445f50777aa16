package webex

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is matched by any APIError with status 404.
	ErrNotFound = errors.New("webex: not found")
	// ErrMalformedResponse means a 2xx body could not be decoded into the expected shape.
	ErrMalformedResponse = errors.New("webex: malformed response")
)

// APIError is a non-2xx answer from the Webex API.
type APIError struct {
	StatusCode int
	Message    string
	TrackingID string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.TrackingID != "" {
		return fmt.Sprintf("webex api status=%d: %s (trackingId=%s)", e.StatusCode, msg, e.TrackingID)
	}
	return fmt.Sprintf("webex api status=%d: %s", e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Unauthorized reports a rejected or insufficient token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// RateLimited reports a 429 answer.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		TrackingID: strings.TrimSpace(resp.Header.Get("Trackingid")),
	}
	var payload struct {
		Message    string `json:"message"`
		TrackingID string `json:"trackingId"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Message)
		if apiErr.TrackingID == "" {
			apiErr.TrackingID = strings.TrimSpace(payload.TrackingID)
		}
	}
	return apiErr
}

// Kind classifies err for logs and metrics labels.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		return "unauthorized"
	case errors.As(err, &apiErr) && apiErr.RateLimited():
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "transport"
	}
}
