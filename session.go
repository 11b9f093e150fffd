package zrtp

import (
	"sync"

	"github.com/lanikai/zrtp/internal/config"
)

// Session is the set of streams sharing one ZID pair, one retained-
// secret relationship in the cache, and — once the first DH stream
// reaches Secure — one ZRTP session key that roots every subsequent
// Multistream child (spec §3 "Session"/"Stream" split).
type Session struct {
	engine *Engine

	localZID ZID
	peerZID  ZID

	profile *config.SessionProfile

	mu          sync.Mutex
	streams     map[uint32]*Stream // keyed by local SSRC
	sessionKey  []byte             // ZRTP session key, set once the first DH stream confirms
	isInitiator bool               // which role this endpoint played on the first DH stream
}

// PeerZID returns the peer ZID learned so far (may be the zero value
// before any Hello has been received).
func (s *Session) PeerZID() ZID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerZID
}

// SetPeerZID records the ZID learned from the peer's first Hello.
func (s *Session) SetPeerZID(z ZID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerZID = z
}

// NewStream creates a Stream bound to this session, identified on the
// wire by ssrc. sender delivers outbound packets to this stream's
// transport; profile defaults to the session's profile but each stream
// may be started with its own TimerProfile.
func (s *Session) NewStream(ssrc uint32, sender PacketSender, timers TimerProfile) *Stream {
	st := &Stream{
		session: s,
		ssrc:    ssrc,
		sender:  sender,
		timers:  timers,
		state:   StateNone,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.streams[ssrc] = st
	s.mu.Unlock()

	return st
}

// Stream looks up a previously created stream by SSRC.
func (s *Session) Stream(ssrc uint32) (*Stream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[ssrc]
	return st, ok
}

func (s *Session) removeStream(ssrc uint32) {
	s.mu.Lock()
	delete(s.streams, ssrc)
	s.mu.Unlock()
}

func (s *Session) setSessionKey(key []byte, initiator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionKey == nil {
		s.sessionKey = key
		s.isInitiator = initiator
	}
}

func (s *Session) getSessionKey() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionKey, s.sessionKey != nil
}

// Info returns a point-in-time snapshot of this session's state,
// suitable for a host's status display.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		LocalZID:  s.localZID,
		PeerZID:   s.peerZID,
		HasSecure: s.sessionKey != nil,
		Streams:   make([]StreamInfo, 0, len(s.streams)),
	}
	for _, st := range s.streams {
		info.Streams = append(info.Streams, st.Info())
	}
	return info
}
