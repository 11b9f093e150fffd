package kdf

import "hash"

// TotalHash accumulates the Hello, Commit, DHPart1, and DHPart2 message
// bodies (ZRTP headers and CRC excluded — spec §4.2 "Total hash") into
// a single running hash, finalized once, before Confirm1 is built.
type TotalHash struct {
	h      hash.Hash
	frozen []byte
}

// NewTotalHash starts a fresh accumulator using the negotiated hash.
func NewTotalHash(newHash HashFunc) *TotalHash {
	return &TotalHash{h: newHash()}
}

// Add feeds one message's body (see wire.Message.Body) into the
// accumulator. Must not be called after Sum.
func (t *TotalHash) Add(messageBytes []byte) {
	if t.frozen != nil {
		panic("kdf: TotalHash.Add called after Sum")
	}
	t.h.Write(messageBytes)
}

// Sum finalizes and caches the digest; subsequent calls return the same
// bytes without re-hashing.
func (t *TotalHash) Sum() []byte {
	if t.frozen == nil {
		t.frozen = t.h.Sum(nil)
	}
	return t.frozen
}
