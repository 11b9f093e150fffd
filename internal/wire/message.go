// Package wire implements the ZRTP message framing described in RFC
// 6189 §5: a 16-bit extension magic, 16-bit length (in 32-bit words), an
// 8-character ASCII message type, a type-specific body, and a trailing
// CRC-32C computed over the whole ZRTP packet.
//
// Grounded on the teacher's internal/ice/stun.go, which frames STUN
// attributes the same way (placeholder trailer, patched in after the
// fact with a CRC computed over everything that precedes it — see
// addFingerprint) and on internal/rtp/rtp.go's use of
// internal/packet.Reader/Writer for header codecs.
package wire

import (
	"hash/crc32"

	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// ExtensionMagic is the 16-bit cookie that opens every ZRTP message,
// distinguishing it from ordinary RTP extension data.
const ExtensionMagic = 0x505a

// MagicCookie is the 32-bit ZRTP magic cookie carried in the RTP
// extension header (RFC 6189 §5, "ZRTP").
const MagicCookie = 0x5a525450

// MinPacketLength is the smallest legal ZRTP packet: 12 (RTP header) +
// 4 (extension header holding MagicCookie) + 4 (extension magic +
// length) + 8 (message type) + 4 (CRC).
const MinPacketLength = 12 + 4 + 4 + 8 + 4

// Type identifies a ZRTP message by its 8-character ASCII wire name.
type Type int

const (
	TypeUnknown Type = iota
	TypeHello
	TypeHelloAck
	TypeCommit
	TypeDHPart1
	TypeDHPart2
	TypeConfirm1
	TypeConfirm2
	TypeConf2Ack
	TypeError
	TypeErrorAck
	TypeGoClear
	TypeClearAck
	TypeSASRelay
	TypeRelayAck
	TypePing
	TypePingAck
)

var typeToName = map[Type]string{
	TypeHello:    "Hello   ",
	TypeHelloAck: "HelloACK",
	TypeCommit:   "Commit  ",
	TypeDHPart1:  "DHPart1 ",
	TypeDHPart2:  "DHPart2 ",
	TypeConfirm1: "Confirm1",
	TypeConfirm2: "Confirm2",
	TypeConf2Ack: "Conf2ACK",
	TypeError:    "Error   ",
	TypeErrorAck: "ErrorACK",
	TypeGoClear:  "GoClear ",
	TypeClearAck: "ClearACK",
	TypeSASRelay: "SASrelay",
	TypeRelayAck: "RelayACK",
	TypePing:     "Ping    ",
	TypePingAck:  "PingACK ",
}

var nameToType map[string]Type

func init() {
	nameToType = make(map[string]Type, len(typeToName))
	for t, name := range typeToName {
		nameToType[name] = t
	}
}

func (t Type) String() string {
	if name, ok := typeToName[t]; ok {
		return name
	}
	return "Unknown "
}

// Retransmittable reports whether the message type is ever resent by
// the scheduler. Acks and terminal notifications are not.
func (t Type) Retransmittable() bool {
	switch t {
	case TypeHello, TypeCommit, TypeDHPart1, TypeDHPart2, TypeConfirm1, TypeConfirm2,
		TypeError, TypeGoClear, TypeSASRelay, TypePing:
		return true
	default:
		return false
	}
}

// Message is a parsed ZRTP message: its type and the type-specific body
// bytes (excluding the 4-byte extension magic/length word, the 8-byte
// type name, and the trailing CRC).
type Message struct {
	Type Type
	Body []byte

	// raw is the full wire encoding of this message, from the extension
	// magic through the CRC inclusive. Kept around so HashInput can
	// return the magic/length/type/payload region without re-serializing.
	raw []byte
}

// Castagnoli is the CRC-32C table mandated by RFC 6189 §5 (same
// polynomial as iSCSI/SCTP), distinct from the plain CRC-32 (IEEE)
// polynomial the teacher's STUN fingerprint uses.
var Castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Parse decodes a single ZRTP message (and its CRC trailer) out of pkt,
// which must begin at the extension magic (i.e. with the 12-byte RTP
// header and 4-byte magic-cookie extension already stripped and
// verified by the caller).
func Parse(pkt []byte) (*Message, error) {
	if len(pkt) < 4+8+4 {
		return nil, xerrors.New("wire: packet shorter than minimum ZRTP framing")
	}

	r := packet.NewReader(pkt)
	magic := r.ReadUint16()
	if magic != ExtensionMagic {
		return nil, xerrors.Errorf("wire: bad extension magic %#04x", magic)
	}
	lengthWords := r.ReadUint16()
	totalLength := int(lengthWords) * 4
	if totalLength < 4+8+4 || totalLength > len(pkt) {
		return nil, xerrors.Errorf("wire: declared length %d out of range", totalLength)
	}

	crcOffset := totalLength - 4
	wantCRC := crc32.Checksum(pkt[:crcOffset], Castagnoli)
	gotCRC := be32(pkt[crcOffset:totalLength])
	if wantCRC != gotCRC {
		return nil, ErrCRCFail
	}

	typeName := string(r.ReadSlice(8))
	t, ok := nameToType[typeName]
	if !ok {
		return nil, xerrors.Errorf("wire: unknown message type %q", typeName)
	}

	body := pkt[r.Offset():crcOffset]
	return &Message{Type: t, Body: body, raw: pkt[:totalLength]}, nil
}

// HashInput returns this message's full wire encoding minus the trailing
// CRC. The engine's total-hash accumulator (internal/kdf) is fed message
// bodies, not this.
func (m *Message) HashInput() []byte {
	if m.raw == nil {
		return nil
	}
	return m.raw[:len(m.raw)-4]
}

// ErrCRCFail is returned by Parse when the CRC-32C trailer does not
// match. Per spec, the caller must silently drop the packet: no state
// change, no Error message, so a forged bad-CRC flood cannot be used to
// drive the protocol or amplify traffic.
var ErrCRCFail = xerrors.New("wire: CRC-32C mismatch")

// Build serializes a message of the given type with the given body,
// appending the length field and CRC-32C trailer.
func Build(t Type, body []byte) []byte {
	totalLength := 4 + 8 + len(body) + 4
	// Round up to a multiple of 4 (ZRTP length is in 32-bit words).
	pad := (4 - totalLength%4) % 4
	totalLength += pad

	w := packet.NewWriterSize(totalLength)
	w.WriteUint16(ExtensionMagic)
	w.WriteUint16(uint16(totalLength / 4))
	w.WriteString(t.String())
	w.WriteSlice(body)
	w.ZeroPad(pad)

	crc := crc32.Checksum(w.Bytes(), Castagnoli)
	out := w.Bytes()
	buf := make([]byte, len(out)+4)
	copy(buf, out)
	putBE32(buf[len(out):], crc)
	return buf
}

func be32(p []byte) uint32 {
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

func putBE32(p []byte, v uint32) {
	p[0] = byte(v >> 24)
	p[1] = byte(v >> 16)
	p[2] = byte(v >> 8)
	p[3] = byte(v)
}
