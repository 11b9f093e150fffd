package wire

import (
	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
)

// Confirm carries an HMAC, a CFB IV, H0 (the preimage of H1, closing
// the anti-DoS hash chain), a signature length, negotiated flags, and
// the cache-expiry interval. The region from H0 through the end of
// Signature/CacheExpiry is AES-CFB encrypted under the stream's
// zrtp_key before the HMAC is computed (spec §4.4 / §4.1
// "Confirmation").
type Confirm struct {
	MAC []byte // 8 bytes, over the encrypted region
	IV  []byte // 16 bytes

	H0 []byte // 32 bytes (plaintext once decrypted)

	SigLength  byte // in words; 0 if no signature attached
	AllowClear bool
	SASVerified bool
	Disclose   bool

	CacheExpiryInterval uint32 // seconds

	Signature []byte // present iff SigLength > 0

	// EncryptedBody holds the raw ciphertext region as read off the
	// wire, present only immediately after DecodeConfirm and before the
	// caller has verified the MAC/decrypted in place.
	EncryptedBody []byte
}

const confirmEncryptedHeaderLength = 32 + 1 + 1 + 2 + 4 // H0, sig-len, flags, reserved, cache-expiry

func (c *Confirm) Encode() []byte {
	w := packet.NewWriterSize(8 + 16 + confirmEncryptedHeaderLength + len(c.Signature))
	w.WriteSlice(zeroIfShort(c.MAC, 8))
	w.WriteSlice(zeroIfShort(c.IV, 16))
	w.WriteSlice(pad32(c.H0))
	w.WriteByte(c.SigLength)

	flags := byte(0)
	if c.AllowClear {
		flags |= 1 << 2
	}
	if c.SASVerified {
		flags |= 1 << 1
	}
	if c.Disclose {
		flags |= 1 << 0
	}
	w.WriteByte(flags)
	w.WriteUint16(0) // reserved

	w.WriteUint32(c.CacheExpiryInterval)
	w.WriteSlice(c.Signature)
	return w.Bytes()
}

// DecodeConfirm splits the MAC and IV off the wire body; the remaining
// EncryptedBody must be decrypted by the caller (internal/srtp or
// internal/kdf consumer holding zrtp_key) before the H0/flags/expiry
// fields are meaningful.
func DecodeConfirm(body []byte) (*Confirm, error) {
	if len(body) < 8+16+confirmEncryptedHeaderLength {
		return nil, xerrors.New("wire: Confirm body too short")
	}
	r := packet.NewReader(body)
	c := &Confirm{}
	c.MAC = append([]byte(nil), r.ReadSlice(8)...)
	c.IV = append([]byte(nil), r.ReadSlice(16)...)
	c.EncryptedBody = append([]byte(nil), r.ReadRemaining()...)
	return c, nil
}

// ParsePlaintext fills in H0/flags/expiry/signature from the
// already-decrypted EncryptedBody. Called after the caller has run
// AES-CFB decryption in place.
func (c *Confirm) ParsePlaintext(plain []byte) error {
	if len(plain) < confirmEncryptedHeaderLength {
		return xerrors.New("wire: Confirm plaintext too short")
	}
	r := packet.NewReader(plain)
	c.H0 = append([]byte(nil), r.ReadSlice(32)...)
	c.SigLength = r.ReadByte()
	flags := r.ReadByte()
	c.AllowClear = flags&(1<<2) != 0
	c.SASVerified = flags&(1<<1) != 0
	c.Disclose = flags&(1<<0) != 0
	r.Skip(2)
	c.CacheExpiryInterval = r.ReadUint32()
	if int(c.SigLength) > 0 {
		c.Signature = append([]byte(nil), r.ReadSlice(int(c.SigLength)*4)...)
	}
	return nil
}
