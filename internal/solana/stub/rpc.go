package stub

import (
	"context"
	"sync"

	"npc-stake/internal/solana"
)

// RPCClient implements solana.RPCClient over an in-memory account map.
type RPCClient struct {
	mu       sync.Mutex
	accounts map[string]*solana.AccountInfo
	slot     int64
	err      error
	calls    map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		accounts: make(map[string]*solana.AccountInfo),
		calls:    make(map[string]int),
	}
}

// SetAccount stores data under pubkey. A nil account removes it.
func (c *RPCClient) SetAccount(pubkey string, account *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if account == nil {
		delete(c.accounts, pubkey)
		return
	}
	c.accounts[pubkey] = account
}

// SetData stores an account owned by owner with the given data.
func (c *RPCClient) SetData(pubkey, owner string, data []byte) {
	c.SetAccount(pubkey, &solana.AccountInfo{Owner: owner, Data: data, Lamports: 1})
}

// SetSlot sets the slot reported by every call.
func (c *RPCClient) SetSlot(slot int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// SetError makes every call fail with err until cleared with nil.
func (c *RPCClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getAccountInfo"]++
	if c.err != nil {
		return nil, c.err
	}
	return copyAccount(c.accounts[pubkey]), nil
}

// GetMultipleAccounts returns the stored accounts in request order.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) (*solana.MultipleAccounts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getMultipleAccounts"]++
	if c.err != nil {
		return nil, c.err
	}

	out := &solana.MultipleAccounts{Slot: c.slot, Accounts: make([]*solana.AccountInfo, len(pubkeys))}
	for i, pk := range pubkeys {
		out.Accounts[i] = copyAccount(c.accounts[pk])
	}
	return out, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getSlot"]++
	if c.err != nil {
		return 0, c.err
	}
	return c.slot, nil
}

func copyAccount(a *solana.AccountInfo) *solana.AccountInfo {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	return &cp
}

var _ solana.RPCClient = (*RPCClient)(nil)
