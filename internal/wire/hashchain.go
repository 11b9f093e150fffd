package wire

import (
	"crypto/rand"

	"golang.org/x/xerrors"
)

// HashChain holds the four self-rooted hash-chain values described in
// RFC 6189 §4.1: H0 is random; H1 = hash(H0), H2 = hash(H1), H3 =
// hash(H2). H3 is published in Hello; each subsequent message publishes
// the preimage of the previous one, letting the receiver verify the
// chain incrementally without trusting anything but the first Hello.
//
// HashChain is generic over the HashFunc supplied to NewHashChain; the
// engine always supplies SHA-256, whatever hash negotiation selects.
type HashChain struct {
	H0, H1, H2, H3 []byte
}

// HashFunc computes the chain's hash over p.
type HashFunc func(p []byte) []byte

// NewHashChain generates a fresh H0 from the crypto RNG and derives
// H1..H3 by repeated application of h.
func NewHashChain(h HashFunc) (*HashChain, error) {
	h0 := make([]byte, len(h(nil)))
	if _, err := rand.Read(h0); err != nil {
		return nil, xerrors.Errorf("wire: generating H0: %w", err)
	}
	h1 := h(h0)
	h2 := h(h1)
	h3 := h(h2)
	return &HashChain{H0: h0, H1: h1, H2: h2, H3: h3}, nil
}

// VerifyPreimage reports whether h(cur) == prev, i.e. cur is the
// immediate preimage of prev in the chain.
func VerifyPreimage(h HashFunc, prev, cur []byte) bool {
	got := h(cur)
	if len(got) != len(prev) {
		return false
	}
	diff := byte(0)
	for i := range got {
		diff |= got[i] ^ prev[i]
	}
	return diff == 0
}
