package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// Hello is the discovery message: version, client id, the anti-DoS
// hash-chain root H3, the sender's ZID, and its advertised component
// preference lists (spec §4.4, "Hello carries version '1.10', 16-byte
// client id, 32-byte H3 ... and bit-packed counts of hash/cipher/auth/
// pk/sas components followed by their 4-character identifiers and an
// 8-byte HMAC of the whole message body").
type Hello struct {
	Version  string // "1.10"
	ClientID string // 16 bytes, space-padded
	H3       []byte // 32 bytes

	ZID [12]byte

	Passive  bool
	MiTM     bool
	SigCap   bool
	URICap   bool

	Hashes     []string // 4-char ids, local preference order
	Ciphers    []string
	AuthTags   []string
	PublicKeys []string
	SASTypes   []string

	MAC []byte // 8-byte HMAC over everything preceding it
}

// clientIDLength is fixed per RFC 6189 §5.1.2.
const clientIDLength = 16

func (h *Hello) Encode() []byte {
	w := packet.NewWriterSize(4 + clientIDLength + 32 + 12 + 4 + 4 +
		4*(len(h.Hashes)+len(h.Ciphers)+len(h.AuthTags)+len(h.PublicKeys)+len(h.SASTypes)) + 8)

	writeVersion(w, h.Version)
	w.WriteString(padTo(h.ClientID, clientIDLength))
	w.WriteSlice(pad32(h.H3))
	w.WriteSlice(h.ZID[:])

	flags := byte(0)
	if h.SigCap {
		flags |= 1 << 3
	}
	if h.MiTM {
		flags |= 1 << 2
	}
	if h.Passive {
		flags |= 1 << 1
	}
	if h.URICap {
		flags |= 1 << 0
	}
	w.WriteByte(flags)

	w.WriteByte(0) // reserved
	w.WriteByte(byte(len(h.Hashes)<<4) | byte(len(h.Ciphers)))
	w.WriteByte(byte(len(h.AuthTags)<<4) | byte(len(h.PublicKeys)))
	// SAS count occupies the low nibble of a trailing byte, per the
	// original layout; high nibble reserved.
	w.WriteByte(byte(len(h.SASTypes)))

	for _, id := range h.Hashes {
		w.WriteString(padTo(id, 4))
	}
	for _, id := range h.Ciphers {
		w.WriteString(padTo(id, 4))
	}
	for _, id := range h.AuthTags {
		w.WriteString(padTo(id, 4))
	}
	for _, id := range h.PublicKeys {
		w.WriteString(padTo(id, 4))
	}
	for _, id := range h.SASTypes {
		w.WriteString(padTo(id, 4))
	}

	w.WriteSlice(zeroIfShort(h.MAC, 8))
	return w.Bytes()
}

func DecodeHello(body []byte) (*Hello, error) {
	if len(body) < 4+clientIDLength+32+12+4 {
		return nil, xerrors.New("wire: Hello body too short")
	}
	r := packet.NewReader(body)

	h := &Hello{}
	h.Version = readVersion(r)
	h.ClientID = trimPad(string(r.ReadSlice(clientIDLength)))
	h.H3 = append([]byte(nil), r.ReadSlice(32)...)
	copy(h.ZID[:], r.ReadSlice(12))

	flags := r.ReadByte()
	h.SigCap = flags&(1<<3) != 0
	h.MiTM = flags&(1<<2) != 0
	h.Passive = flags&(1<<1) != 0
	h.URICap = flags&(1<<0) != 0

	r.Skip(1) // reserved
	b1 := r.ReadByte()
	b2 := r.ReadByte()
	sasCount := int(r.ReadByte())

	hc, cc := int(b1>>4), int(b1&0xf)
	ac, pc := int(b2>>4), int(b2&0xf)

	if err := r.CheckRemaining(4*(hc+cc+ac+pc+sasCount) + 8); err != nil {
		return nil, xerrors.Errorf("wire: Hello component list: %w", err)
	}

	h.Hashes = readIDList(r, hc)
	h.Ciphers = readIDList(r, cc)
	h.AuthTags = readIDList(r, ac)
	h.PublicKeys = readIDList(r, pc)
	h.SASTypes = readIDList(r, sasCount)

	h.MAC = append([]byte(nil), r.ReadSlice(8)...)
	return h, nil
}

func readIDList(r *packet.Reader, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = string(r.ReadSlice(4))
	}
	return out
}

func writeVersion(w *packet.Writer, v string) {
	w.WriteString(padTo(v, 4))
}

func readVersion(r *packet.Reader) string {
	return trimPad(string(r.ReadSlice(4)))
}

func padTo(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]byte, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = ' '
	}
	return string(out)
}

func trimPad(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == 0) {
		i--
	}
	return s[:i]
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out, b)
	return out
}

func zeroIfShort(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
