package wire

import (
	"crypto/hmac"
	"hash"
)

// MAC8 computes HMAC(key, msg) using newHash (e.g. sha256.New) and
// truncates to 8 bytes, the fixed MAC length used by every
// HMAC-bearing ZRTP message (Hello, DHPart, GoClear, Confirm, SASRelay).
func MAC8(newHash func() hash.Hash, key, msg []byte) []byte {
	mac := hmac.New(newHash, key)
	mac.Write(msg)
	return mac.Sum(nil)[:8]
}

// VerifyMAC8 constant-time-compares a received 8-byte MAC against the
// one computed over msg under key.
func VerifyMAC8(newHash func() hash.Hash, key, msg, received []byte) bool {
	want := MAC8(newHash, key, msg)
	return hmac.Equal(want, received)
}
