package kdf

import "strings"

// base32Alphabet is the "B32" SAS rendering scheme's alphabet (spec
// glossary mentions "B32" as a registered SAS encoder id; base32
// avoids visually ambiguous characters, per standard ZRTP practice).
const base32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

// RenderB32 renders the leftmost 20 bits of a SAS digest (produced by
// KDF(s0, "SAS", context, 256) per spec §4.2) as a 4-character SAS
// word using the B32 scheme.
func RenderB32(sasHash []byte) string {
	if len(sasHash) < 3 {
		return ""
	}
	bits := uint32(sasHash[0])<<12 | uint32(sasHash[1])<<4 | uint32(sasHash[2])>>4

	var b strings.Builder
	for i := 0; i < 4; i++ {
		shift := uint(15 - 5*i)
		idx := (bits >> shift) & 0x1f
		b.WriteByte(base32Alphabet[idx])
	}
	return b.String()
}

// DeriveSAS computes KDF(s0, "SAS", context, 256) and renders it with
// the negotiated SAS scheme. Only "B32" is implemented; unknown schemes
// fall back to B32 so a session always has a renderable SAS.
func DeriveSAS(h HashFunc, s0 []byte, context []byte, scheme string) (string, error) {
	sasHash, err := KDF(h, s0, LabelSAS, context, 256)
	if err != nil {
		return "", err
	}
	switch scheme {
	case "B32 ", "B32":
		return RenderB32(sasHash), nil
	default:
		return RenderB32(sasHash), nil
	}
}
