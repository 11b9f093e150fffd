package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// DHPart is shared by DHPart1 (Responder → Initiator) and DHPart2
// (Initiator → Responder): H1, four 8-byte secret IDs (rs1/rs2/aux/
// pbx), the public value (only the PK scheme's actual prefix is
// meaningful; the field is sized for the largest registered scheme),
// and a trailing 8-byte MAC.
type DHPart struct {
	H1 []byte // 32 bytes

	RS1ID  [8]byte
	RS2ID  [8]byte
	AuxID  [8]byte
	PBXID  [8]byte

	PV []byte // public value, scheme-dependent length

	MAC []byte // 8 bytes
}

func (d *DHPart) Encode() []byte {
	w := packet.NewWriterSize(32 + 4*8 + len(d.PV) + 8)
	w.WriteSlice(pad32(d.H1))
	w.WriteSlice(d.RS1ID[:])
	w.WriteSlice(d.RS2ID[:])
	w.WriteSlice(d.AuxID[:])
	w.WriteSlice(d.PBXID[:])
	w.WriteSlice(d.PV)
	w.WriteSlice(zeroIfShort(d.MAC, 8))
	return w.Bytes()
}

// DecodeDHPart parses a DHPart body given the expected PV length (the
// caller determines this from the already-negotiated PublicKey scheme,
// since the wire format carries no explicit PV length field — see
// spec.md's "the engine uses only the prefix defined by the chosen PK
// scheme" note).
func DecodeDHPart(body []byte, pvLen int) (*DHPart, error) {
	want := 32 + 4*8 + pvLen + 8
	if len(body) < want {
		return nil, xerrors.Errorf("wire: DHPart body too short for pv length %d", pvLen)
	}
	r := packet.NewReader(body)
	d := &DHPart{}
	d.H1 = append([]byte(nil), r.ReadSlice(32)...)
	copy(d.RS1ID[:], r.ReadSlice(8))
	copy(d.RS2ID[:], r.ReadSlice(8))
	copy(d.AuxID[:], r.ReadSlice(8))
	copy(d.PBXID[:], r.ReadSlice(8))
	d.PV = append([]byte(nil), r.ReadSlice(pvLen)...)
	d.MAC = append([]byte(nil), r.ReadSlice(8)...)
	return d, nil
}
