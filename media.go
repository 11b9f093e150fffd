package zrtp

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/lanikai/zrtp/internal/packet"
	"github.com/lanikai/zrtp/internal/srtp"
)

// rtpFixedHeaderSize is the 12-byte fixed RTP header (RFC 3550 §5.1)
// with no CSRC list or extension, mirroring the teacher's rtpHeader
// (internal/rtp/rtp.go): ZRTP's media path only ever sees packets a
// host's own RTP stack already built or is about to parse.
const rtpFixedHeaderSize = 12

// ProtectRTP encrypts and authenticates an outbound RTP packet for
// this stream's secured media path (spec §2 data flow, §6 Packet I/O).
// plaintext must already be a complete RTP packet — 12-byte fixed
// header followed by payload — as produced by the host's RTP stack;
// the stream only protects it, it never builds RTP packets itself. The
// returned buffer is a new slice holding ciphertext plus the appended
// SRTP auth tag; plaintext is left untouched.
func (s *Stream) ProtectRTP(plaintext []byte) ([]byte, error) {
	if len(plaintext) < rtpFixedHeaderSize {
		return nil, xerrors.New("zrtp: RTP packet shorter than fixed header")
	}

	seq := binary.BigEndian.Uint16(plaintext[2:4])

	s.mu.Lock()
	crypto := s.txCrypto
	authTagName := s.authTagName
	var index uint64
	if crypto != nil {
		// The SRTP index is the packet's own sequence number extended by
		// the rollover count, the same index UnprotectRTP rebuilds.
		index = s.txRTPIndex&^0xffff | uint64(seq)
		if index+0x8000 < s.txRTPIndex {
			index += 0x10000
		}
		s.txRTPIndex = index
	}
	s.mu.Unlock()
	if crypto == nil {
		return nil, errNotSecure
	}

	tagLen, err := srtp.AuthTagBytes(authTagName)
	if err != nil {
		return nil, err
	}

	ssrc := binary.BigEndian.Uint32(plaintext[8:12])

	w := packet.NewWriterSize(len(plaintext) + 4 + tagLen)
	if err := w.WriteSlice(plaintext); err != nil {
		return nil, err
	}
	if err := crypto.EncryptRTP(w, rtpFixedHeaderSize, ssrc, index); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnprotectRTP verifies and decrypts an inbound RTP packet, returning
// the plaintext payload (the header is left in ciphertext's copy but
// isn't itself encrypted). The stream straightens ciphertext's 16-bit
// wire sequence number into the 48-bit SRTP index itself, the same way
// the teacher's rtpReader.updateIndex tracks RTP rollover.
func (s *Stream) UnprotectRTP(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < rtpFixedHeaderSize {
		return nil, xerrors.New("zrtp: RTP packet shorter than fixed header")
	}

	ssrc := binary.BigEndian.Uint32(ciphertext[8:12])
	wireSeq := binary.BigEndian.Uint16(ciphertext[2:4])

	s.mu.Lock()
	crypto := s.rxCrypto
	var index uint64
	if crypto != nil {
		index = s.extendRxRTPIndex(wireSeq)
	}
	s.mu.Unlock()
	if crypto == nil {
		return nil, errNotSecure
	}

	buf := append([]byte(nil), ciphertext...)
	return crypto.DecryptRTP(buf, rtpFixedHeaderSize, ssrc, index)
}

// extendRxRTPIndex widens an inbound RTP sequence number into this
// stream's running 48-bit index, tolerant of both forward gaps and
// 16-bit rollover. Grounded on the teacher's rtpReader.updateIndex
// (internal/rtp/rtp.go): same delta-based rollover correction, adapted
// to the stream's own locking instead of a dedicated reader struct.
// Must be called with s.mu held.
func (s *Stream) extendRxRTPIndex(seq uint16) uint64 {
	if !s.haveRxRTP {
		s.haveRxRTP = true
		s.rxRTPSeq = seq
		s.rxRTPIndex = uint64(seq)
		return s.rxRTPIndex
	}

	delta := int32(seq) - int32(s.rxRTPSeq)
	if delta > 32768 {
		delta -= 65536
	} else if delta <= -32768 {
		delta += 65536
	}

	index := uint64(int64(s.rxRTPIndex) + int64(delta))
	if index > s.rxRTPIndex {
		s.rxRTPIndex = index
		s.rxRTPSeq = seq
	}
	return index
}

// ProtectRTCP encrypts and authenticates an outbound RTCP compound
// packet the same way ProtectRTP does for RTP, using this stream's own
// monotonic SRTCP index (spec §2 data flow; RTCP has no implicit ROC to
// recover on the wire, so the index travels in the packet itself — see
// DESIGN.md's "RTCP E-bit always set" decision).
func (s *Stream) ProtectRTCP(plaintext []byte) ([]byte, error) {
	if len(plaintext) < 8 {
		return nil, xerrors.New("zrtp: RTCP packet shorter than fixed header")
	}

	s.mu.Lock()
	crypto := s.txCrypto
	authTagName := s.authTagName
	if crypto != nil {
		s.txRTCPIndex++
	}
	index := s.txRTCPIndex
	s.mu.Unlock()
	if crypto == nil {
		return nil, errNotSecure
	}

	tagLen, err := srtp.AuthTagBytes(authTagName)
	if err != nil {
		return nil, err
	}

	w := packet.NewWriterSize(len(plaintext) + 4 + tagLen)
	if err := w.WriteSlice(plaintext); err != nil {
		return nil, err
	}
	if err := crypto.EncryptRTCP(w, index); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnprotectRTCP verifies and decrypts an inbound RTCP compound packet,
// returning its plaintext body.
func (s *Stream) UnprotectRTCP(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	crypto := s.rxCrypto
	s.mu.Unlock()
	if crypto == nil {
		return nil, errNotSecure
	}

	buf := append([]byte(nil), ciphertext...)
	payload, _, err := crypto.DecryptRTCP(buf)
	return payload, err
}
