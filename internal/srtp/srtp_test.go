package srtp

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lanikai/zrtp/internal/packet"
)

const (
	testMasterKey  = "TopSecret128bits"
	testMasterSalt = "SodiumChloride"
)

func roundTripRTP(t *testing.T, c Cipher, authTagName string) {
	t.Helper()
	authLen, err := AuthTagBytes(authTagName)
	require.NoError(t, err)

	ctx := NewContext([]byte(testMasterKey), []byte(testMasterSalt), c, authLen)

	ssrc := uint32(0x1337d00d)
	index := uint64(123456)
	payload := []byte("abcdefghijklmnopqrstuvwxyz")

	w := packet.NewWriterSize(12 + len(payload) + 4 + authLen)
	w.WriteUint32(0x80640000 | uint32(uint16(index)))
	w.WriteUint32(55555555)
	w.WriteUint32(ssrc)
	require.NoError(t, w.WriteSlice(payload))

	require.NoError(t, ctx.EncryptRTP(w, 12, ssrc, index))

	out, err := ctx.DecryptRTP(w.Bytes(), 12, ssrc, index)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestEncryptDecryptRTP_CounterMode(t *testing.T) {
	roundTripRTP(t, CipherAESCounterMode, "HS80")
}

func TestEncryptDecryptRTP_CounterMode_HS32(t *testing.T) {
	roundTripRTP(t, CipherAESCounterMode, "HS32")
}

// This is the regression test for the reviewed bug: aesCFBMode used to
// build every closure with cipher.NewCFBEncrypter, so DecryptRTP was
// actually re-encrypting already-encrypted bytes instead of reversing
// them. A round trip under CFB only recovers the original plaintext
// once encrypt/decrypt use distinct cipher.Stream directions.
func TestEncryptDecryptRTP_CFBMode(t *testing.T) {
	roundTripRTP(t, CipherAESCFB, "HS80")
}

func TestEncryptDecryptRTCP(t *testing.T) {
	for _, c := range []Cipher{CipherAESCounterMode, CipherAESCFB} {
		authLen, err := AuthTagBytes("HS80")
		require.NoError(t, err)
		ctx := NewContext([]byte(testMasterKey), []byte(testMasterSalt), c, authLen)

		ssrc := uint32(0x1337d00d)
		index := uint32(123456)
		payload := []byte("abcdefghijklmnopqrstuvwxyz")

		w := packet.NewWriterSize(8 + len(payload) + 4 + authLen)
		w.WriteUint32(0x80c80000)
		w.WriteUint32(ssrc)
		require.NoError(t, w.WriteSlice(payload))

		require.NoError(t, ctx.EncryptRTCP(w, index))

		out, outIndex, err := ctx.DecryptRTCP(w.Bytes())
		require.NoError(t, err)
		require.Equal(t, payload, out)
		require.Equal(t, index, outIndex)
	}
}

// DecryptRTP must reject a tampered auth tag rather than silently
// returning forged plaintext.
func TestDecryptRTP_AuthFailure(t *testing.T) {
	authLen, err := AuthTagBytes("HS80")
	require.NoError(t, err)
	ctx := NewContext([]byte(testMasterKey), []byte(testMasterSalt), CipherAESCounterMode, authLen)

	ssrc := uint32(1)
	payload := []byte("0123456789abcdef")

	w := packet.NewWriterSize(12 + len(payload) + 4 + authLen)
	w.WriteUint32(0x80640001)
	w.WriteUint32(0)
	w.WriteUint32(ssrc)
	require.NoError(t, w.WriteSlice(payload))
	require.NoError(t, ctx.EncryptRTP(w, 12, ssrc, 1))

	buf := w.Bytes()
	buf[len(buf)-1] ^= 0xff

	_, err = ctx.DecryptRTP(buf, 12, ssrc, 1)
	require.ErrorIs(t, err, ErrAuthFailed)
}

// DecryptRTP must reject an index already accepted by the replay
// window, mirroring the SRTP-layer half of the replay protection
// named by spec §5.
func TestDecryptRTP_Replay(t *testing.T) {
	authLen, err := AuthTagBytes("HS80")
	require.NoError(t, err)
	ctx := NewContext([]byte(testMasterKey), []byte(testMasterSalt), CipherAESCounterMode, authLen)

	ssrc := uint32(1)
	payload := []byte("0123456789abcdef")

	build := func(index uint64) []byte {
		w := packet.NewWriterSize(12 + len(payload) + 4 + authLen)
		w.WriteUint32(0x80640000 | uint32(uint16(index)))
		w.WriteUint32(0)
		w.WriteUint32(ssrc)
		require.NoError(t, w.WriteSlice(payload))
		require.NoError(t, ctx.EncryptRTP(w, 12, ssrc, index))
		return append([]byte(nil), w.Bytes()...)
	}

	first := build(10)
	_, err = ctx.DecryptRTP(first, 12, ssrc, 10)
	require.NoError(t, err)

	replay := build(10)
	_, err = ctx.DecryptRTP(replay, 12, ssrc, 10)
	require.ErrorIs(t, err, ErrReplay)
}

// AES-CM keystream test vectors, RFC 3711 Appendix B.2.
func TestAESCounterModeKeystream(t *testing.T) {
	sessionKey, _ := hex.DecodeString("2B7E151628AED2A6ABF7158809CF4F3C")
	sessionSalt, _ := hex.DecodeString("F0F1F2F3F4F5F6F7F8F9FAFBFCFD0000")
	cp := aesCounterMode(sessionKey, sessionSalt)

	keystream := make([]byte, 1044512)
	cp.encrypt(keystream, uint32(0), uint64(0))

	require.True(t, checkHex(keystream[0:48],
		"E03EAD0935C95E80E166B16DD92B4EB4"+
			"D23513162B02D0F72A43A2FE4A5F97AB"+
			"41E95B3BB0A2E8DD477901E4FCA894C0"))
	require.True(t, checkHex(keystream[len(keystream)-48:],
		"EC8CDF7398607CB0F2D21675EA9EA1E4"+
			"362B7C3C6773516318A077D7FC5073AE"+
			"6A2CC3787889374FBEB4C81B17BA6C44"))
}

// Key derivation test vectors, RFC 3711 Appendix B.3.
func TestDeriveKey(t *testing.T) {
	masterKey, _ := hex.DecodeString("E1F97A0D3E018BE0D64FA32C06DE4139")
	masterSalt, _ := hex.DecodeString("0EC675AD498AFEEBB6960B3AABE6")

	key := deriveKey(masterKey, masterSalt, 0, labelRTPEncryption, 16)
	require.True(t, checkHex(key, "C61E7A93744F39EE10734AFE3FF7A087"))

	salt := deriveKey(masterKey, masterSalt, 0, labelRTPSalt, 14)
	require.True(t, checkHex(salt, "30CBBC08863D8C85D49DB34A9AE1"))
}

func checkHex(value []byte, expectedHex string) bool {
	return hex.EncodeToString(value) == strings.ToLower(expectedHex)
}

func TestReplayWindow(t *testing.T) {
	w := NewReplayWindow()
	require.True(t, w.Check(5))
	w.Mark(5)

	require.False(t, w.Check(5), "already-marked index must be rejected")
	require.True(t, w.Check(6))
	w.Mark(6)

	require.True(t, w.Check(4), "older but still in-window index is allowed until marked")
	w.Mark(4)
	require.False(t, w.Check(4))

	w.Mark(uint64(replayWindowBits) + 1000)
	require.False(t, w.Check(500), "index older than the window must be rejected")
}
