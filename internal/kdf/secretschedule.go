package kdf

import (
	"crypto/hmac"
	"encoding/binary"
)

// zrtpHMACKDFLabel is the fixed ASCII label folded into the s0
// expansion hash (spec §4.2 s0 formula).
const zrtpHMACKDFLabel = "ZRTP-HMAC-KDF"

// SecretID computes the 8-byte published identifier for a retained
// secret: HMAC_h(secret, role), where role is "Initiator" or
// "Responder" depending on which side is publishing it. Each side
// publishes an ID for every secret slot it has (zeros if absent) so the
// peer can probe for a match without revealing the secret itself.
//
// The spec's prose describes these IDs as computed "under s0", which is
// circular (s0 is not yet known when DHPart1/DHPart2, which carry the
// IDs, are built) — resolved per DESIGN.md by instead keying the HMAC
// with the secret itself, matching the usual RFC 6189 construction.
func SecretID(newHash HashFunc, secret []byte, role string) []byte {
	mac := hmac.New(newHash, secret)
	mac.Write([]byte(role))
	return mac.Sum(nil)[:8]
}

// DHSS computes the shared DH secret input to s0: hash(dhResult).
func DHSS(newHash HashFunc, dhResult []byte) []byte {
	h := newHash()
	h.Write(dhResult)
	return h.Sum(nil)
}

// MatchedSecret names one retained secret the peers have confirmed they
// both hold, in the fixed precedence order rs1 < rs2 < aux < pbx.
type MatchedSecret struct {
	Kind  string // "rs1", "rs2", "aux", "pbx"
	Value []byte
}

// MatchSecrets compares the locally held secret IDs against the ones
// the peer published, in rs1/rs2/aux/pbx order, and returns up to three
// matches (s1..s3) per spec §4.2 ("capped at three, inserted ... in a
// well-defined order rs1 before rs2 before aux before pbx").
func MatchSecrets(newHash HashFunc, localRole string, local map[string][]byte, peerIDs map[string][8]byte) []MatchedSecret {
	var matches []MatchedSecret
	for _, kind := range []string{"rs1", "rs2", "aux", "pbx"} {
		secret, ok := local[kind]
		if !ok || len(secret) == 0 {
			continue
		}
		// The peer published its IDs under its own role, the opposite
		// of localRole.
		peerRole := "Responder"
		if localRole == "Responder" {
			peerRole = "Initiator"
		}
		mine := SecretID(newHash, secret, peerRole)
		peerID := peerIDs[kind]
		if constantTimeEqual(mine[:8], peerID[:]) {
			matches = append(matches, MatchedSecret{Kind: kind, Value: secret})
			if len(matches) == 3 {
				break
			}
		}
	}
	return matches
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// DeriveS0 computes
//   s0 = hash( counter=1 || DHSS || "ZRTP-HMAC-KDF" || ZIDi || ZIDr ||
//              total_hash || len(s1)|s1 || len(s2)|s2 || len(s3)|s3 )
// with each length field a 16-bit big-endian byte count (0 if the
// corresponding secret is absent).
func DeriveS0(newHash HashFunc, dhss []byte, zidInitiator, zidResponder [12]byte, totalHash []byte, matched []MatchedSecret) []byte {
	h := newHash()

	var counter [4]byte
	binary.BigEndian.PutUint32(counter[:], 1)
	h.Write(counter[:])

	h.Write(dhss)
	h.Write([]byte(zrtpHMACKDFLabel))
	h.Write(zidInitiator[:])
	h.Write(zidResponder[:])
	h.Write(totalHash)

	for i := 0; i < 3; i++ {
		var lenField [2]byte
		if i < len(matched) {
			binary.BigEndian.PutUint16(lenField[:], uint16(len(matched[i].Value)))
			h.Write(lenField[:])
			h.Write(matched[i].Value)
		} else {
			h.Write(lenField[:]) // length 0, no value
		}
	}

	return h.Sum(nil)
}

// DeriveMultistreamS0 computes the Multistream-mode s0 directly from
// the parent session's ZRTP session key and a fresh per-stream nonce,
// per spec §4.2 ("Multistream derives s0 from the session's ZRTP
// session key with a fresh per-stream nonce; no DH runs").
func DeriveMultistreamS0(newHash HashFunc, sessionKey, nonce []byte) []byte {
	h := newHash()
	h.Write(sessionKey)
	h.Write(nonce)
	return h.Sum(nil)
}

// DerivePresharedS0 computes s0 for Preshared mode from the matched
// preshared secret and a fresh nonce, following the same "no DH"
// shortcut as Multistream but rooted in the cached preshared secret
// rather than a live session key.
func DerivePresharedS0(newHash HashFunc, presharedSecret, nonce []byte) []byte {
	h := newHash()
	h.Write(presharedSecret)
	h.Write(nonce)
	return h.Sum(nil)
}
