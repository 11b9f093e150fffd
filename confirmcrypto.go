package zrtp

import (
	"crypto/aes"
	"crypto/cipher"
)

// encryptConfirmBody and decryptConfirmBody apply the AES-CFB transform
// spec §4.4 requires over a Confirm message's H0-through-signature
// region, keyed by the stream's negotiated zrtp_key (not the SRTP
// master key — a separate label in the schedule exists for exactly
// this purpose).
func encryptConfirmBody(zrtpKey, iv, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(zrtpKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plain)
	return out, nil
}

func decryptConfirmBody(zrtpKey, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(zrtpKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	return out, nil
}
