package zrtp

// SessionInfo is a point-in-time, race-free snapshot of a Session, for
// hosts that poll status rather than (or in addition to) subscribing
// via EventHandler.
type SessionInfo struct {
	LocalZID  ZID
	PeerZID   ZID
	HasSecure bool
	Streams   []StreamInfo
}

// StreamInfo is a point-in-time snapshot of one Stream.
type StreamInfo struct {
	SSRC uint32

	State StreamState

	Hash      string
	Cipher    string
	AuthTag   string
	PublicKey string
	SASScheme string

	SAS         string
	SASVerified bool

	PeerClientID string
}
