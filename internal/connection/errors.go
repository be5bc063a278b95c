package connection

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// HandshakeError is returned when the server answers the upgrade request
// with a non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// IsAuthRejected returns true if the server refused the credential.
func (e *HandshakeError) IsAuthRejected() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// disconnectReason maps a transport error to the reason reported with Disconnected.
func disconnectReason(err error) string {
	switch {
	case err == nil:
		return "transport close"
	case errors.Is(err, ErrStaleConnection):
		return "ping timeout"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "io server disconnect"
	case websocket.IsUnexpectedCloseError(err):
		return "transport close"
	}
	return "transport error"
}
