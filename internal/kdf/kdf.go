// Package kdf implements the ZRTP key derivation function and the
// total-hash accumulator described in spec §4.2: KDF(KI, Label,
// Context, L) = HMAC_h(KI, 0x00000001 || Label || 0x00 || Context ||
// uint32(L)), truncated to the leftmost L bits.
//
// Grounded on the teacher's internal/rtp/srtp.go deriveKey: both are
// "derive N labeled sub-keys from one master secret via a keyed PRF",
// though ZRTP's PRF is HMAC rather than AES-CM keystream, so the shape
// (label-parameterized derivation, fixed output length per label) is
// reused but the primitive is not.
package kdf

import (
	"crypto/hmac"
	"encoding/binary"
	"hash"

	"golang.org/x/xerrors"
)

// HashFunc constructs the negotiated hash (the component registry's
// selected hash, e.g. sha256.New, sha512.New).
type HashFunc func() hash.Hash

// Labels used throughout key-schedule derivation (spec §4.2).
const (
	LabelInitiatorSRTPKey   = "Initiator SRTP master key"
	LabelInitiatorSRTPSalt  = "Initiator SRTP master salt"
	LabelResponderSRTPKey   = "Responder SRTP master key"
	LabelResponderSRTPSalt  = "Responder SRTP master salt"
	LabelInitiatorHMACKey   = "Initiator HMAC key"
	LabelResponderHMACKey   = "Responder HMAC key"
	LabelInitiatorZRTPKey   = "Initiator ZRTP key"
	LabelResponderZRTPKey   = "Responder ZRTP key"
	LabelSAS                = "SAS"
	LabelRetainedSecret     = "retained secret"
	LabelZRTPSessionKey     = "ZRTP Session Key"
	LabelMultistreamZRTPKey = "Multistream ZRTP key" // not used by DeriveMultistreamS0, which hashes session key || nonce
)

// KDF computes HMAC_h(ki, 0x00000001 || label || 0x00 || context ||
// be32(lBits)), truncated to lBits (which must be a multiple of 8).
func KDF(h HashFunc, ki []byte, label string, context []byte, lBits int) ([]byte, error) {
	if lBits%8 != 0 {
		return nil, xerrors.Errorf("kdf: L=%d is not a whole number of bytes", lBits)
	}

	mac := hmac.New(h, ki)
	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], 1)
	mac.Write(counter[:])
	mac.Write([]byte(label))
	mac.Write([]byte{0x00})
	mac.Write(context)
	var lField [4]byte
	binary.BigEndian.PutUint32(lField[:], uint32(lBits))
	mac.Write(lField[:])

	sum := mac.Sum(nil)
	lBytes := lBits / 8
	if lBytes > len(sum) {
		return nil, xerrors.Errorf("kdf: requested %d bytes, hash only produces %d", lBytes, len(sum))
	}
	return sum[:lBytes], nil
}

// Context builds the KDF "Context" parameter used by every s0
// expansion: ZIDi || ZIDr || total_hash.
func Context(zidInitiator, zidResponder [12]byte, totalHash []byte) []byte {
	out := make([]byte, 0, 24+len(totalHash))
	out = append(out, zidInitiator[:]...)
	out = append(out, zidResponder[:]...)
	out = append(out, totalHash...)
	return out
}
