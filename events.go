package zrtp

// ProtocolEvent reports a stream's state-machine progress: discovery
// outcomes, mode transitions, MiTM enrollment (spec §7.3).
type ProtocolEvent int

const (
	EventNone ProtocolEvent = iota
	EventIsSecure
	EventIsClear
	EventNoZRTPQuick // ZRTP_NO_ZRTP_FAST_COUNT unanswered Hellos
	EventNoZRTP
	EventSASVerified
	EventPendingClear
	EventPendingSecure
	EventStreamError
	EventMiTMEnrolled
)

var protocolEventNames = map[ProtocolEvent]string{
	EventNone:         "none",
	EventIsSecure:     "is_secure",
	EventIsClear:      "is_clear",
	EventNoZRTPQuick:  "no_zrtp_quick",
	EventNoZRTP:       "no_zrtp",
	EventSASVerified:  "sas_verified",
	EventPendingClear: "pending_clear",
	EventPendingSecure: "pending_secure",
	EventStreamError:  "stream_error",
	EventMiTMEnrolled: "mitm_enrolled",
}

func (e ProtocolEvent) String() string {
	if name, ok := protocolEventNames[e]; ok {
		return name
	}
	return "unknown_event"
}

// SecurityEvent reports an anomaly or suspected attack, distinct from
// ordinary protocol progress (spec §7.3).
type SecurityEvent int

const (
	SecurityEventNone SecurityEvent = iota
	SecurityEventWrongSignalingHash
	SecurityEventWrongHMAC
	SecurityEventRetainedSecretMismatch
	SecurityEventPossibleMiTM
	SecurityEventRelayedSASFromNonMiTM
	SecurityEventUnauthenticatedGoClear
	SecurityEventReplay
)

var securityEventNames = map[SecurityEvent]string{
	SecurityEventNone:                    "none",
	SecurityEventWrongSignalingHash:      "wrong_signaling_hash",
	SecurityEventWrongHMAC:               "wrong_hmac",
	SecurityEventRetainedSecretMismatch:  "retained_secret_mismatch",
	SecurityEventPossibleMiTM:            "possible_mitm",
	SecurityEventRelayedSASFromNonMiTM:   "relayed_sas_from_non_mitm",
	SecurityEventUnauthenticatedGoClear:  "unauthenticated_goclear",
	SecurityEventReplay:                  "replay",
}

func (e SecurityEvent) String() string {
	if name, ok := securityEventNames[e]; ok {
		return name
	}
	return "unknown_security_event"
}

// EventHandler is the host's callback sink for both event streams
// (spec §3 "the callback bundle", shape fixed by SPEC_FULL.md §8).
// Implementations must not block for long: the engine calls these
// synchronously from the stream's processing goroutine. OnSecure and
// OnNotSecure are called in addition to (not instead of) the matching
// EventIsSecure/EventIsClear ProtocolEvent, since a host that only
// cares about the secure/not-secure transition shouldn't have to
// switch on ProtocolEvent to find it.
type EventHandler interface {
	OnProtocolEvent(stream *Stream, kind ProtocolEvent)
	OnSecurityEvent(stream *Stream, kind SecurityEvent)
	OnSecure(stream *Stream)
	OnNotSecure(stream *Stream)
}

// NopEventHandler discards every event; useful as a default when a host
// only wants to poll StreamInfo/SessionInfo rather than subscribe.
type NopEventHandler struct{}

func (NopEventHandler) OnProtocolEvent(*Stream, ProtocolEvent) {}
func (NopEventHandler) OnSecurityEvent(*Stream, SecurityEvent) {}
func (NopEventHandler) OnSecure(*Stream)                       {}
func (NopEventHandler) OnNotSecure(*Stream)                    {}
