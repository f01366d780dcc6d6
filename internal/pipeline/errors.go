package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/darkden-lab/ozone/internal/plugin"
)

var (
	// ErrNotReady is returned while plugins are still settling.
	ErrNotReady = errors.New("gateway is not ready")
	// ErrPanic wraps a value recovered from a panicking stage or plugin.
	ErrPanic = errors.New("panic")
)

// statusFor maps a stage failure to the HTTP status sent to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, plugin.ErrNoBinding):
		return http.StatusNotFound
	case errors.Is(err, plugin.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, plugin.ErrMalformedResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the error text placed in the failure envelope. Plugin
// internals are not echoed back.
func clientMessage(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return ErrNotReady.Error()
	case http.StatusNotFound:
		return "no plugin is bound to this route"
	case http.StatusGatewayTimeout:
		return "plugin did not answer in time"
	case http.StatusBadGateway:
		return "plugin returned a malformed result"
	}
	return http.StatusText(status)
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, v)
}
