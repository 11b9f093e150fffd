package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// Commit carries the sender's hash pre-image H2, its ZID, the
// negotiated component selection, and the 32-byte commitment hv/hvi
// (spec §4.4): for DH mode, hash(peerHelloBody || DHPart2Body); for
// Multistream/Preshared, a 16-byte nonce plus an 8-byte HMAC of that
// nonce under the preshared/session key.
type Commit struct {
	H2  []byte // 32 bytes
	ZID [12]byte

	Hash     string
	Cipher   string
	AuthTag  string
	PublicKey string
	SASType  string

	HVI []byte // 32 bytes: hash commitment (DH mode) or nonce||HMAC (MS/PS mode)
}

func (c *Commit) Encode() []byte {
	w := packet.NewWriterSize(32 + 12 + 4*5 + 32)
	w.WriteSlice(pad32(c.H2))
	w.WriteSlice(c.ZID[:])
	w.WriteString(padTo(c.Hash, 4))
	w.WriteString(padTo(c.Cipher, 4))
	w.WriteString(padTo(c.AuthTag, 4))
	w.WriteString(padTo(c.PublicKey, 4))
	w.WriteString(padTo(c.SASType, 4))
	w.WriteSlice(pad32(c.HVI))
	return w.Bytes()
}

func DecodeCommit(body []byte) (*Commit, error) {
	const want = 32 + 12 + 4*5 + 32
	if len(body) < want {
		return nil, xerrors.New("wire: Commit body too short")
	}
	r := packet.NewReader(body)
	c := &Commit{}
	c.H2 = append([]byte(nil), r.ReadSlice(32)...)
	copy(c.ZID[:], r.ReadSlice(12))
	c.Hash = trimPad(string(r.ReadSlice(4)))
	c.Cipher = trimPad(string(r.ReadSlice(4)))
	c.AuthTag = trimPad(string(r.ReadSlice(4)))
	c.PublicKey = trimPad(string(r.ReadSlice(4)))
	c.SASType = trimPad(string(r.ReadSlice(4)))
	c.HVI = append([]byte(nil), r.ReadSlice(32)...)
	return c, nil
}

// IsDHMode reports whether PublicKey names a Diffie-Hellman scheme
// (as opposed to the Multistream/Preshared sentinel "Mult"/"Prsh").
func (c *Commit) IsDHMode() bool {
	return c.PublicKey != "Mult" && c.PublicKey != "Prsh"
}
