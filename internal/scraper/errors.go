package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout indicates the search request timed out.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a dial, TLS or other network failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrBody indicates the response body could not be read.
type ErrBody struct {
	Err error
}

func (e ErrBody) Error() string {
	return fmt.Errorf("body: %w", e.Err).Error()
}

func (e ErrBody) Unwrap() error {
	return e.Err
}

// ErrBlocked indicates the engine answered with a captcha, an interstitial or
// a rate-limit response instead of results.
type ErrBlocked struct {
	Source     string
	StatusCode int
}

func (e ErrBlocked) Error() string {
	return fmt.Sprintf("blocked: %s (status %d)", e.Source, e.StatusCode)
}

// ErrStatus indicates a server-side HTTP failure (5xx).
type ErrStatus struct {
	StatusCode int
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("status: http %d", e.StatusCode)
}

// classifyError maps a client error onto ErrTimeout or ErrConnection.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	return ErrConnection{Err: err}
}

// Outcome labels an attempt result for logs and metrics.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var body ErrBody
	if errors.As(err, &body) {
		return "body"
	}
	var blocked ErrBlocked
	if errors.As(err, &blocked) {
		return "blocked"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		return "status"
	}
	return "other"
}
