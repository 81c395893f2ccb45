package program

import (
	"encoding/binary"
	"math/big"

	"npc-stake/internal/solana"
)

// writer appends borsh little-endian fields.
type writer struct {
	buf []byte
}

func (w *writer) raw(b []byte)              { w.buf = append(w.buf, b...) }
func (w *writer) pubkey(pk solana.PublicKey) { w.raw(pk[:]) }
func (w *writer) u8(v uint8)                { w.buf = append(w.buf, v) }
func (w *writer) u64(v uint64)              { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) flag(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

// u128 writes v, which must fit in 128 bits.
func (w *writer) u128(v *big.Int) {
	var be [16]byte
	if v != nil {
		v.FillBytes(be[:])
	}
	for i := 15; i >= 0; i-- {
		w.u8(be[i])
	}
}

// EncodePool serializes p in the program's account layout.
func EncodePool(p *Pool) []byte {
	w := &writer{buf: make([]byte, 0, PoolAccountSize)}
	w.raw(poolDiscriminator[:])
	w.pubkey(p.Admin)
	w.pubkey(p.StakingMint)
	w.pubkey(p.StakingVault)
	w.flag(p.RewardConfigured)
	w.pubkey(p.RewardMint)
	w.pubkey(p.RewardVault)
	w.u64(p.RewardRatePerSec)
	w.u64(p.RateCap)
	w.u64(p.TotalStaked)
	w.u128(p.AccScaled)
	w.u64(uint64(p.LastUpdateTs))
	w.flag(p.Paused)
	w.flag(p.Locked)
	w.u8(p.Bump)
	w.u8(p.SignerBump)
	w.raw(make([]byte, PoolAccountSize-len(w.buf)))
	return w.buf
}

// EncodeUser serializes u in the program's account layout.
func EncodeUser(u *User) []byte {
	w := &writer{buf: make([]byte, 0, UserAccountSize)}
	w.raw(userDiscriminator[:])
	w.pubkey(u.Owner)
	w.u64(u.Staked)
	w.u128(u.Debt)
	w.u128(u.UnpaidRewards)
	w.u8(u.Bump)
	w.raw(make([]byte, UserAccountSize-len(w.buf)))
	return w.buf
}

// EncodeMint returns a minimal SPL mint account with the given decimals.
func EncodeMint(decimals uint8) []byte {
	data := make([]byte, mintAccountSize)
	data[MintDecimalsOffset] = decimals
	data[MintDecimalsOffset+1] = 1 // is_initialized
	return data
}
