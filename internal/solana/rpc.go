package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used to read staking state.
type RPCClient interface {
	// GetAccountInfo retrieves a single account. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves several accounts at one slot. Missing
	// accounts are nil entries at their index.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) (*MultipleAccounts, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// MultipleAccounts is the result of getMultipleAccounts.
type MultipleAccounts struct {
	Slot     int64
	Accounts []*AccountInfo
}
