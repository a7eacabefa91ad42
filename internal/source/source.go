// Package source holds the upstream calendar clients. Each client
// returns raw events for one calendar bounded by a query window.
package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured means the court has no calendar id / feed URL.
	ErrNotConfigured = errors.New("source not configured")
	// ErrMissingCredential means the upstream needs an API key that is unset.
	ErrMissingCredential = errors.New("missing upstream credential")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %s", e.Status)
}

// NewHTTPClient returns the client shared by all sources.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// CheckStatus turns non-2xx responses into *StatusError, draining a
// little of the body so the connection can be reused.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
	return &StatusError{Code: resp.StatusCode, Status: resp.Status}
}
