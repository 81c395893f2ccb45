package solana

// Commitment levels accepted by the RPC node.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// rpcContext carries the slot a response was evaluated at.
type rpcContext struct {
	Slot int64 `json:"slot"`
}

// rawAccount is an account as encoded on the wire with base64 data.
type rawAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

type getAccountInfoResult struct {
	Context rpcContext  `json:"context"`
	Value   *rawAccount `json:"value"`
}

type getMultipleAccountsResult struct {
	Context rpcContext    `json:"context"`
	Value   []*rawAccount `json:"value"`
}
