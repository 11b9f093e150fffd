package zrtp

import (
	"sync"

	"github.com/lanikai/zrtp/internal/components"
	"github.com/lanikai/zrtp/internal/kdf"
	"github.com/lanikai/zrtp/internal/registry"
	"github.com/lanikai/zrtp/internal/srtp"
	"github.com/lanikai/zrtp/internal/wire"
)

// Stream is one negotiated ZRTP exchange, bound to one RTP SSRC. Its
// mutex guards every field below: the FSM runs from whatever goroutine
// calls HandlePacket or a scheduler callback, and both must serialize
// against each other (spec §3 "the stream lock").
type Stream struct {
	session *Session
	ssrc    uint32
	sender  PacketSender
	timers  TimerProfile

	mu    sync.Mutex
	state StreamState

	isInitiator bool
	multistream bool

	// Negotiated component names and their registry implementations.
	hashName    string
	cipherName  string
	authTagName string
	pkName      string
	sasName     string
	hashFactory kdf.HashFunc
	pkScheme    components.PublicKeyScheme

	chain  *wire.HashChain
	peerH3 []byte
	peerH2 []byte
	peerH1 []byte
	peerH0 []byte

	totalHash *kdf.TotalHash

	localHelloRaw   []byte
	peerHelloRaw    []byte
	localCommitRaw  []byte
	peerCommitRaw   []byte
	localDHPartRaw  []byte
	peerDHPartRaw   []byte

	localHello *wire.Hello
	peerHello  *wire.Hello
	peerCommit *wire.Commit

	dhPriv []byte
	dhPub  []byte

	s0         []byte
	keySchedule *kdf.KeySchedule

	txCrypto *srtp.Context // encrypts packets we send
	rxCrypto *srtp.Context // decrypts packets we receive

	// Media-path packet indices (spec §2 data flow, §6 Packet I/O),
	// tracked independently of inboundSeq below: that field straightens
	// the ZRTP control protocol's own sequence number, these straighten
	// the SRTP/SRTCP media streams' 48-bit and 32-bit indices.
	txRTPIndex  uint64
	rxRTPSeq    uint16
	rxRTPIndex  uint64
	haveRxRTP   bool
	txRTCPIndex uint32

	sasVerified bool

	helloRetry  *RetryTask
	commitRetry *RetryTask
	otherRetry  *RetryTask

	unansweredHellos int

	seq uint16

	// inboundSeq is the highest straightened (32-bit, wraparound-extended)
	// ZRTP sequence number accepted from the peer so far; haveInboundSeq
	// is false until the first packet arrives, since there is no "last"
	// to extend against yet (spec §4.4 parser step 4, §3 invariant
	// "highest inbound ZRTP sequence").
	inboundSeq    uint32
	haveInboundSeq bool

	done      chan struct{}
	closeOnce sync.Once
}

func (s *Stream) nextSeq() uint16 {
	s.seq++
	return s.seq
}

// acceptSequence straightens an inbound wire sequence number against
// the highest one seen so far and reports whether it advances the
// stream (spec §4.4 parser step 4): a replayed or reordered-backward
// packet — same or older than what's already been accepted — is
// rejected here, before HandlePacket ever dispatches on message type.
func (s *Stream) acceptSequence(wireSeq uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveInboundSeq {
		s.inboundSeq = wire.ExtendSequence(0, wireSeq)
		s.haveInboundSeq = true
		return true
	}

	extended := wire.ExtendSequence(s.inboundSeq, wireSeq)
	if extended <= s.inboundSeq {
		return false
	}
	s.inboundSeq = extended
	return true
}

// Info returns a point-in-time snapshot of this stream.
func (s *Stream) Info() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StreamInfo{
		SSRC:      s.ssrc,
		State:     s.state,
		Hash:      s.hashName,
		Cipher:    s.cipherName,
		AuthTag:   s.authTagName,
		PublicKey: s.pkName,
		SASScheme: s.sasName,
		SASVerified: s.sasVerified,
	}
	if s.keySchedule != nil {
		info.SAS = s.keySchedule.SAS
	}
	if s.peerHello != nil {
		info.PeerClientID = s.peerHello.ClientID
	}
	return info
}

// State returns the stream's current FSM state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.session.engine.handler.OnProtocolEvent(s, stateEvent(state))
}

func stateEvent(state StreamState) ProtocolEvent {
	switch state {
	case StateSecure:
		return EventIsSecure
	case StateClear:
		return EventIsClear
	case StatePendingSecure:
		return EventPendingSecure
	case StatePendingClear:
		return EventPendingClear
	case StateError:
		return EventStreamError
	case StateNoZRTP:
		return EventNoZRTP
	default:
		return EventNone
	}
}

// Close cancels every outstanding retry for this stream and releases
// it from its session; safe to call more than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.session.engine.scheduler.CancelCallLater(s, nil)
		close(s.done)
		s.session.removeStream(s.ssrc)
	})
}

func (s *Stream) registryLookup(cat registry.Category, name string) (*registry.Descriptor, bool) {
	return s.session.engine.registry.Lookup(cat, name)
}
