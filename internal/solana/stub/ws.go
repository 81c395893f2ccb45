package stub

import (
	"context"
	"sync"

	"npc-stake/internal/solana"
)

// WSClient implements solana.WSClient with channels driven by the test.
type WSClient struct {
	mu     sync.Mutex
	subs   map[string]chan solana.AccountNotification
	closed bool
}

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{subs: make(map[string]chan solana.AccountNotification)}
}

// SubscribeAccount registers a channel for pubkey.
func (c *WSClient) SubscribeAccount(_ context.Context, pubkey string) (<-chan solana.AccountNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, solana.ErrClientClosed
	}
	ch := make(chan solana.AccountNotification, 16)
	c.subs[pubkey] = ch
	return ch, nil
}

// Notify delivers n to the subscriber of n.Pubkey. It reports false when
// nobody is subscribed.
func (c *WSClient) Notify(n solana.AccountNotification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[n.Pubkey]
	if !ok || c.closed {
		return false
	}
	ch <- n
	return true
}

// Subscribed reports whether pubkey has a subscriber.
func (c *WSClient) Subscribed(pubkey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[pubkey]
	return ok
}

// Close closes every subscription channel.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for pk, ch := range c.subs {
		close(ch)
		delete(c.subs, pk)
	}
	return nil
}

var _ solana.WSClient = (*WSClient)(nil)
