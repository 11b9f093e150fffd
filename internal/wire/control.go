package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// GoClear carries a ClearHMAC: an HMAC over the ASCII constant
// "GoClear" keyed with the stream's hmackey, proving the sender still
// holds the secure session's key material (spec §4.1 "GoClear").
type GoClear struct {
	ClearHMAC []byte // 8 bytes
}

func (g *GoClear) Encode() []byte {
	w := packet.NewWriterSize(8)
	w.WriteSlice(zeroIfShort(g.ClearHMAC, 8))
	return w.Bytes()
}

func DecodeGoClear(body []byte) (*GoClear, error) {
	if len(body) < 8 {
		return nil, xerrors.New("wire: GoClear body too short")
	}
	r := packet.NewReader(body)
	return &GoClear{ClearHMAC: append([]byte(nil), r.ReadSlice(8)...)}, nil
}

// Error carries a single wire-visible protocol error code (spec §7.2).
type Error struct {
	Code uint32
}

func (e *Error) Encode() []byte {
	w := packet.NewWriterSize(4)
	w.WriteUint32(e.Code)
	return w.Bytes()
}

func DecodeError(body []byte) (*Error, error) {
	if len(body) < 4 {
		return nil, xerrors.New("wire: Error body too short")
	}
	r := packet.NewReader(body)
	return &Error{Code: r.ReadUint32()}, nil
}

// SASRelay carries the same HMAC/IV/encrypted-body shape as Confirm
// (spec: "protected with the same HMAC/zrtp_key scheme as Confirm"),
// plus the relaying MiTM's own rendering scheme selection. The SAS
// field is not written by Encode.
type SASRelay struct {
	MAC []byte // 8 bytes
	IV  []byte // 16 bytes

	// Encrypted region, once decrypted:
	FilledSASHash []byte // 32 bytes
	SASRendering  string // 4-char SAS scheme id, e.g. "B32 "
	SAS           string // up to 4 chars, rendered SAS value

	EncryptedBody []byte
}

const sasRelayEncryptedHeaderLength = 32 + 1 + 1 + 2 + 4

func (s *SASRelay) Encode() []byte {
	w := packet.NewWriterSize(8 + 16 + sasRelayEncryptedHeaderLength)
	w.WriteSlice(zeroIfShort(s.MAC, 8))
	w.WriteSlice(zeroIfShort(s.IV, 16))
	w.WriteSlice(pad32(s.FilledSASHash))
	w.WriteByte(0) // reserved flags
	w.WriteByte(0)
	w.WriteUint16(0)
	w.WriteString(padTo(s.SASRendering, 4))
	return w.Bytes()
}

func DecodeSASRelay(body []byte) (*SASRelay, error) {
	if len(body) < 8+16 {
		return nil, xerrors.New("wire: SASRelay body too short")
	}
	r := packet.NewReader(body)
	s := &SASRelay{}
	s.MAC = append([]byte(nil), r.ReadSlice(8)...)
	s.IV = append([]byte(nil), r.ReadSlice(16)...)
	s.EncryptedBody = append([]byte(nil), r.ReadRemaining()...)
	return s, nil
}

// Empty-body acknowledgement/ping messages: HelloAck, ConfAck,
// ErrorAck, ClearAck, RelayAck, Ping, PingAck carry no payload beyond
// the common header, so they share this zero-length body helper.
func EmptyBody() []byte { return nil }
