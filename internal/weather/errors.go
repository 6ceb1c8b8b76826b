package weather

import (
	"context"
	"errors"
	"net"
)

// Failure categories for a weather refresh. All of them are recovered the
// same way (keep the previous state); the kind only feeds logs and metrics.
var (
	ErrTimeout   = errors.New("weather: request timed out")
	ErrTransport = errors.New("weather: transport error")
	ErrStatus    = errors.New("weather: unexpected HTTP status")
	ErrMalformed = errors.New("weather: malformed response")
)

// Kind returns a stable label for err: "timeout", "transport", "status",
// "malformed", "ok" for nil, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}

// classifyTransport maps an http.Client.Do error onto ErrTimeout or
// ErrTransport.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrTransport
}
