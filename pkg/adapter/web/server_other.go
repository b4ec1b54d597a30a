//go:build !linux

package web

import (
	"context"
	"fmt"

	"github.com/marmos91/mediaforge/internal/netpoll"
)

// Serve fails: the reactor needs epoll.
func (a *Adapter) Serve(context.Context) error {
	return fmt.Errorf("%s adapter: %w", a.Protocol(), netpoll.ErrUnsupported)
}
