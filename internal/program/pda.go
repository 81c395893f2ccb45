package program

import (
	"fmt"

	"npc-stake/internal/solana"
)

// PDA seed prefixes.
const (
	SeedPool       = "pool"
	SeedPoolSigner = "pool-signer"
	SeedUser       = "user"
)

// PoolAddress derives the pool PDA for a staking mint.
func PoolAddress(programID, stakingMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(SeedPool), stakingMint[:]}, programID)
}

// SignerAddress derives the pool's vault authority PDA.
func SignerAddress(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(SeedPoolSigner), pool[:]}, programID)
}

// UserAddress derives a staker's user PDA.
func UserAddress(programID, pool, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(SeedUser), pool[:], owner[:]}, programID)
}

// Addresses are the accounts a wallet's dashboard reads.
type Addresses struct {
	Program     solana.PublicKey
	StakingMint solana.PublicKey
	Pool        solana.PublicKey
	Signer      solana.PublicKey
	Owner       solana.PublicKey
	User        solana.PublicKey // zero when no wallet is connected
}

// HasUser reports whether a wallet is configured.
func (a Addresses) HasUser() bool {
	return !a.Owner.IsZero()
}

// Derive resolves every PDA for programID/stakingMint and, when owner is not
// empty, the owner's user account.
func Derive(programID, stakingMint, owner string) (Addresses, error) {
	var a Addresses
	var err error

	if a.Program, err = solana.ParsePublicKey(programID); err != nil {
		return a, fmt.Errorf("program id: %w", err)
	}
	if a.StakingMint, err = solana.ParsePublicKey(stakingMint); err != nil {
		return a, fmt.Errorf("staking mint: %w", err)
	}
	if a.Pool, _, err = PoolAddress(a.Program, a.StakingMint); err != nil {
		return a, fmt.Errorf("pool address: %w", err)
	}
	if a.Signer, _, err = SignerAddress(a.Program, a.Pool); err != nil {
		return a, fmt.Errorf("signer address: %w", err)
	}

	if owner == "" {
		return a, nil
	}
	if a.Owner, err = solana.ParsePublicKey(owner); err != nil {
		return a, fmt.Errorf("owner: %w", err)
	}
	if a.User, _, err = UserAddress(a.Program, a.Pool, a.Owner); err != nil {
		return a, fmt.Errorf("user address: %w", err)
	}
	return a, nil
}
