package realtime

import (
	"context"
	"errors"
	"fmt"

	"shipnotify/internal/protocol"
)

// Conn is an open real-time channel. Write may be called concurrently with Read.
type Conn interface {
	Read() (*protocol.Envelope, error)
	Write(env *protocol.Envelope) error
	// Close performs a client-initiated normal close.
	Close() error
}

// Dialer opens channels authenticated with a bearer token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// CloseError reports that the peer closed the channel with a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("channel closed by server: %d %s", e.Code, e.Reason)
}

// closeCode extracts the close code from a read error. ok is false when the
// channel dropped without a close frame.
func closeCode(err error) (code int, ok bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}

// IsTerminalClose reports whether a server close code ends the session, in
// which case the client must not reconnect on its own.
func IsTerminalClose(code int) bool {
	return code == protocol.CloseNormal || code == protocol.CloseSessionEnded
}
