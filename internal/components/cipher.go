package components

import (
	"crypto/aes"

	"github.com/lanikai/zrtp/internal/registry"
	"github.com/lanikai/zrtp/internal/srtp"
)

// CipherSpec names a negotiable session cipher: its SRTP-layer Cipher
// mode and the master key length it requires. Every registered name,
// including "2FS1", maps to an AES mode from internal/srtp; there is no
// Twofish implementation.
type CipherSpec struct {
	KeyBytes int
	Cipher   srtp.Cipher
}

func registerCiphers(r *registry.Registry) {
	register := func(name string, spec CipherSpec) {
		r.Register(&registry.Descriptor{
			Name:     name,
			Category: registry.CategoryCipher,
			Impl:     spec,
			SelfTest: func() error { return selfTestCipher(spec) },
		})
	}

	register("AES1", CipherSpec{KeyBytes: 16, Cipher: srtp.CipherAESCounterMode})
	register("AES2", CipherSpec{KeyBytes: 24, Cipher: srtp.CipherAESCounterMode})
	register("AES3", CipherSpec{KeyBytes: 32, Cipher: srtp.CipherAESCounterMode})

	// 2FS1 (Twofish-128) is accepted in Hello/Commit negotiation for
	// interop with peers that advertise it, and internal/config.Default
	// lists it last. The SRTP layer only implements AES-CM/AES-CFB, so a
	// stream that negotiates 2FS1 is protected with AES-128 counter mode.
	register("2FS1", CipherSpec{KeyBytes: 16, Cipher: srtp.CipherAESCounterMode})
}

func selfTestCipher(spec CipherSpec) error {
	if spec.KeyBytes != 16 && spec.KeyBytes != 24 && spec.KeyBytes != 32 {
		return errSelfTestSize
	}
	key := make([]byte, spec.KeyBytes)
	if spec.KeyBytes == 16 || spec.KeyBytes == 24 || spec.KeyBytes == 32 {
		if _, err := aes.NewCipher(key); err != nil {
			return err
		}
	}
	return nil
}
