// Package program decodes the staking program's accounts and derives its
// program addresses.
package program

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"npc-stake/internal/domain"
	"npc-stake/internal/solana"
)

// Account sizes including the 8-byte discriminator.
const (
	DiscriminatorLength = 8
	PoolAccountSize     = DiscriminatorLength + 32*3 + 1 + 32*2 + 8*3 + 16 + 8 + 1 + 1 + 1 + 1 + 44
	UserAccountSize     = DiscriminatorLength + 32 + 8 + 16 + 16 + 1 + 23

	// MintDecimalsOffset is the decimals byte in an SPL mint account.
	MintDecimalsOffset = 44
	mintAccountSize    = 82
)

// Decode errors.
var (
	ErrShortAccount          = errors.New("account data too short")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
)

// Discriminator returns the Anchor discriminator for an account type name.
func Discriminator(name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

var (
	poolDiscriminator = Discriminator("Pool")
	userDiscriminator = Discriminator("User")
)

// Pool is the decoded on-chain pool account.
type Pool struct {
	Admin            solana.PublicKey
	StakingMint      solana.PublicKey
	StakingVault     solana.PublicKey
	RewardConfigured bool
	RewardMint       solana.PublicKey
	RewardVault      solana.PublicKey
	RewardRatePerSec uint64
	RateCap          uint64
	TotalStaked      uint64
	AccScaled        *big.Int // u128
	LastUpdateTs     int64
	Paused           bool
	Locked           bool
	Bump             uint8
	SignerBump       uint8
}

// User is the decoded on-chain user account.
type User struct {
	Owner         solana.PublicKey
	Staked        uint64
	Debt          *big.Int // u128
	UnpaidRewards *big.Int // u128
	Bump          uint8
}

// reader walks borsh little-endian fields.
type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) []byte {
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) pubkey() solana.PublicKey {
	var pk solana.PublicKey
	copy(pk[:], r.take(32))
	return pk
}

func (r *reader) u8() uint8   { return r.take(1)[0] }
func (r *reader) flag() bool  { return r.u8() != 0 }
func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *reader) i64() int64  { return int64(r.u64()) }

func (r *reader) u128() *big.Int {
	le := r.take(16)
	be := make([]byte, 16)
	for i := range le {
		be[15-i] = le[i]
	}
	return new(big.Int).SetBytes(be)
}

func checkHeader(data []byte, want [DiscriminatorLength]byte, size int, name string) error {
	if len(data) < size {
		return fmt.Errorf("%s: %w: %d < %d", name, ErrShortAccount, len(data), size)
	}
	if !bytes.Equal(data[:DiscriminatorLength], want[:]) {
		return fmt.Errorf("%s: %w", name, ErrDiscriminatorMismatch)
	}
	return nil
}

// DecodePool decodes a pool account.
func DecodePool(data []byte) (*Pool, error) {
	if err := checkHeader(data, poolDiscriminator, PoolAccountSize, "pool"); err != nil {
		return nil, err
	}

	r := &reader{buf: data, off: DiscriminatorLength}
	return &Pool{
		Admin:            r.pubkey(),
		StakingMint:      r.pubkey(),
		StakingVault:     r.pubkey(),
		RewardConfigured: r.flag(),
		RewardMint:       r.pubkey(),
		RewardVault:      r.pubkey(),
		RewardRatePerSec: r.u64(),
		RateCap:          r.u64(),
		TotalStaked:      r.u64(),
		AccScaled:        r.u128(),
		LastUpdateTs:     r.i64(),
		Paused:           r.flag(),
		Locked:           r.flag(),
		Bump:             r.u8(),
		SignerBump:       r.u8(),
	}, nil
}

// DecodeUser decodes a user account.
func DecodeUser(data []byte) (*User, error) {
	if err := checkHeader(data, userDiscriminator, UserAccountSize, "user"); err != nil {
		return nil, err
	}

	r := &reader{buf: data, off: DiscriminatorLength}
	return &User{
		Owner:         r.pubkey(),
		Staked:        r.u64(),
		Debt:          r.u128(),
		UnpaidRewards: r.u128(),
		Bump:          r.u8(),
	}, nil
}

// DecodeMintDecimals reads the decimals byte of an SPL mint account.
func DecodeMintDecimals(data []byte) (int, error) {
	if len(data) < mintAccountSize {
		return 0, fmt.Errorf("mint: %w: %d < %d", ErrShortAccount, len(data), mintAccountSize)
	}
	return int(data[MintDecimalsOffset]), nil
}

// Snapshot converts the pool into the accrual engine's snapshot.
func (p *Pool) Snapshot(address string, stakingDecimals, rewardDecimals int) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		Address:          address,
		AccScaled:        new(big.Int).Set(p.AccScaled),
		LastUpdateTs:     p.LastUpdateTs,
		RewardRatePerSec: new(big.Int).SetUint64(p.RewardRatePerSec),
		TotalStaked:      new(big.Int).SetUint64(p.TotalStaked),
		StakingDecimals:  stakingDecimals,
		RewardDecimals:   rewardDecimals,
	}
}

// Snapshot converts the user into the accrual engine's snapshot.
func (u *User) Snapshot() *domain.UserSnapshot {
	return &domain.UserSnapshot{
		Owner:         u.Owner.String(),
		Staked:        new(big.Int).SetUint64(u.Staked),
		Debt:          new(big.Int).Set(u.Debt),
		UnpaidRewards: new(big.Int).Set(u.UnpaidRewards),
	}
}
