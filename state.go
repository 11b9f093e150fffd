package zrtp

// StreamState enumerates every state a Stream's FSM can occupy (spec
// §4 state diagram, plus the three MiTM-CSD "driven" states from spec
// §11 that let a trusted relay hold a stream in a waiting pattern
// until call signaling tells it to proceed).
type StreamState int

const (
	StateNone StreamState = iota
	StateActive
	StateStart
	StateWaitHelloAck
	StateWaitHello
	StateClear
	StateStartInitiatingSecure
	StateInitiatingSecure
	StateWaitConfirm1
	StateWaitConfirmAck
	StatePendingSecure
	StateWaitConfirm2
	StateSecure
	StateSASRelaying
	StateInitiatingClear
	StatePendingClear
	StateInitiatingError
	StatePendingError
	StateError
	StateNoZRTP

	// MiTM-CSD driven states (spec §11): a trusted relay parks a leg
	// here until the other leg's negotiation outcome is known, then
	// drives it forward explicitly rather than letting it free-run.
	StateDrivenInitiator
	StateDrivenResponder
	StateDrivenPending
)

var streamStateNames = map[StreamState]string{
	StateNone:                  "none",
	StateActive:                "active",
	StateStart:                 "start",
	StateWaitHelloAck:          "wait_hello_ack",
	StateWaitHello:             "wait_hello",
	StateClear:                 "clear",
	StateStartInitiatingSecure: "start_initiating_secure",
	StateInitiatingSecure:      "initiating_secure",
	StateWaitConfirm1:          "wait_confirm1",
	StateWaitConfirmAck:        "wait_confirm_ack",
	StatePendingSecure:         "pending_secure",
	StateWaitConfirm2:          "wait_confirm2",
	StateSecure:                "secure",
	StateSASRelaying:           "sas_relaying",
	StateInitiatingClear:       "initiating_clear",
	StatePendingClear:          "pending_clear",
	StateInitiatingError:       "initiating_error",
	StatePendingError:          "pending_error",
	StateError:                 "error",
	StateNoZRTP:                "no_zrtp",
	StateDrivenInitiator:       "driven_initiator",
	StateDrivenResponder:       "driven_responder",
	StateDrivenPending:         "driven_pending",
}

func (s StreamState) String() string {
	if name, ok := streamStateNames[s]; ok {
		return name
	}
	return "unknown_state"
}
