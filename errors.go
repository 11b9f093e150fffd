package zrtp

import "github.com/pkg/errors"

// Sentinel errors for conditions the engine itself detects (as opposed
// to ProtocolError codes, which are what gets sent on the wire to a
// peer). Kept as a var-of-errors block in the teacher's own style
// (compare the teacher's root errors.go), generalized from
// "errNotFound/errNotImplemented/errNotSupported" to this domain's
// local-detection failures.
var (
	errSessionClosed      = errors.New("zrtp: session is closed")
	errStreamClosed       = errors.New("zrtp: stream is closed")
	errNoSuchStream       = errors.New("zrtp: no such stream")
	errAlreadyStarted     = errors.New("zrtp: stream already started")
	errWrongState         = errors.New("zrtp: operation invalid in current state")
	errNoUsableComponents = errors.New("zrtp: no mutually supported component set")
	errNoSessionKey       = errors.New("zrtp: no established session key for multistream")
	errNoPresharedSecret  = errors.New("zrtp: no cached preshared secret")

	// errReplayedPacket is returned (and otherwise silently dropped, not
	// propagated to a peer) when an inbound ZRTP packet's straightened
	// sequence number does not advance past the highest one this stream
	// has already accepted.
	errReplayedPacket = errors.New("zrtp: replayed or reordered packet")

	// errNotSecure is returned by the SRTP media-path methods when a
	// stream has not (or no longer) reached StateSecure, so it has no
	// txCrypto/rxCrypto to protect or unprotect a packet with.
	errNotSecure = errors.New("zrtp: stream is not secure")

	// ErrCacheMiss is returned by Cache.Get/GetMiTMSecret when no record
	// exists yet for a ZID pair; exported since a host's own Cache
	// implementation needs to return the same sentinel for the engine
	// to treat a miss as "no retained secrets" rather than a failure.
	ErrCacheMiss = errors.New("zrtp: cache miss")
)
