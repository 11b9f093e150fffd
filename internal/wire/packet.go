package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// Packet is a fully parsed ZRTP packet as carried over an RTP flow: a
// 12-byte RTP-shaped header (version 2, a 0xffff "ZRTP" payload type
// convention is left to the transport, not validated here per spec —
// only the magic cookie distinguishes ZRTP traffic), the 4-byte magic
// cookie, and the framed Message. The sender's SSRC in the RTP header
// doubles as its ZRTP "Source ID"; there is no separate field for it.
//
// Grounded on internal/rtp/rtp.go's header codec shape (fixed fields
// read/written via packet.Reader/Writer, explicit version check).
type Packet struct {
	SequenceNumber uint32 // host-order, extended for wraparound by the caller
	SSRC           uint32
	Message        *Message
}

const rtpHeaderSize = 12

// ParsePacket decodes buf as described in spec: verify minimum length,
// verify the magic cookie, then delegate to Parse for the ZRTP message
// and its CRC.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < MinPacketLength {
		return nil, xerrors.Errorf("wire: packet length %d below minimum %d", len(buf), MinPacketLength)
	}

	r := packet.NewReader(buf)
	first := r.ReadByte()
	version := first >> 6
	if version != 2 {
		return nil, xerrors.Errorf("wire: unexpected RTP version %d", version)
	}
	r.Skip(1) // PT/marker byte: ignored by the engine per spec
	seq := r.ReadUint16()
	r.Skip(4) // timestamp: unused by ZRTP framing
	ssrc := r.ReadUint32()

	cookie := r.ReadUint32()
	if cookie != MagicCookie {
		return nil, xerrors.Errorf("wire: bad magic cookie %#08x", cookie)
	}

	msg, err := Parse(buf[r.Offset():])
	if err != nil {
		return nil, err
	}

	return &Packet{SequenceNumber: uint32(seq), SSRC: ssrc, Message: msg}, nil
}

// BuildPacket serializes a full ZRTP-over-RTP packet: the 12-byte
// RTP-shaped header, the magic cookie, and the framed message produced
// by Build.
func BuildPacket(seq uint16, ssrc uint32, t Type, body []byte) []byte {
	msg := Build(t, body)

	w := packet.NewWriterSize(rtpHeaderSize + 4 + len(msg))
	w.WriteByte(2 << 6) // V=2, P=0, X=0, CC=0
	w.WriteByte(0)      // M=0, PT=0: transport-layer convention, not ZRTP's concern
	w.WriteUint16(seq)
	w.WriteUint32(0) // timestamp: unused
	w.WriteUint32(ssrc)
	w.WriteUint32(MagicCookie)
	w.WriteSlice(msg)
	return w.Bytes()
}

// ExtendSequence widens a 16-bit wire sequence number into a 32-bit
// host-order counter, tolerant of wraparound: the new low 16 bits go
// under the same high half as last, moved to the next high half when
// they trail last's low half by more than 0x8000, or to the previous
// high half (if any) when they lead it by more than 0x8000. Mirrors spec step 4 of the
// parser ("sequence number is straightened into a 32-bit host-order
// counter against the stream's last-received value").
func ExtendSequence(last uint32, wireSeq uint16) uint32 {
	lastLow := uint16(last)
	lastHigh := last &^ 0xffff

	candidate := lastHigh | uint32(wireSeq)
	if wireSeq < lastLow && lastLow-wireSeq > 0x8000 {
		candidate += 0x10000
	} else if wireSeq > lastLow && wireSeq-lastLow > 0x8000 {
		if candidate >= 0x10000 {
			candidate -= 0x10000
		}
	}
	return candidate
}
