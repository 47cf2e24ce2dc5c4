package websocket

import (
	"context"
	"fmt"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/crowdroom/internal/domain"
)

// clientSender is the subset of *centrifuge.Client used for direct sends.
type clientSender interface {
	ID() string
	Send(data []byte) error
}

// clientConn addresses a single connection, bypassing channels.
type clientConn struct {
	client clientSender
}

var _ domain.Conn = (*clientConn)(nil)

func newClientConn(client *centrifuge.Client) *clientConn {
	return &clientConn{client: client}
}

func (c *clientConn) ID() string {
	return c.client.ID()
}

func (c *clientConn) Send(_ context.Context, event domain.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := c.client.Send(data); err != nil {
		return fmt.Errorf("send %s to client %s: %w", event.Name, c.client.ID(), err)
	}
	return nil
}
