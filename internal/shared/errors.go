// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/coder/websocket"
)

// IsDisconnectError reports whether err is the normal end of a websocket
// conversation: a close frame from the peer, a cancelled context, or a
// connection that is already gone. These are logged quietly, not reported.
func IsDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
