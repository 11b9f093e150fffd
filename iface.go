package zrtp

import (
	"time"

	"github.com/lanikai/zrtp/internal/scheduler"
)

// Standard retry timings (spec §4.5), re-exported from
// internal/scheduler so FSM code building a RetryTask doesn't need to
// import that package directly.
var (
	TimingT1         = fromInternalTiming(scheduler.TimingT1)
	TimingT1Extended = fromInternalTiming(scheduler.TimingT1Extended)
	TimingT2         = fromInternalTiming(scheduler.TimingT2)
	TimingT3         = fromInternalTiming(scheduler.TimingT3)
	TimingError      = fromInternalTiming(scheduler.TimingError)
)

// NoZRTPFastCount is the unanswered-Hello count after which the FSM
// fires EventNoZRTPQuick so a host can abandon discovery early.
const NoZRTPFastCount = scheduler.NoZRTPFastCount

func fromInternalTiming(t scheduler.Timing) RetryTiming {
	return RetryTiming{Start: t.Start, Cap: t.Cap, MaxRetries: t.MaxRetries}
}

// Cache is the host-facing persistence contract (spec §6, shape fixed
// by SPEC_FULL.md §8). An Engine is handed one Cache at construction
// and never touches storage directly; internal/cache's three backends
// (Memory, File, Distributed) each sit behind a thin adapter in
// cache_adapter.go that implements this interface.
type Cache interface {
	Get(local, peer ZID, which SecretSlot) (*RetainedSecret, error)
	Put(local, peer ZID, which SecretSlot, secret *RetainedSecret) error

	GetVerified(local, peer ZID) (bool, error)
	SetVerified(local, peer ZID, verified bool) error

	GetPresharedCounter(local, peer ZID) (uint32, error)
	IncrementPresharedCounter(local, peer ZID) (uint32, error)

	GetMiTMSecret(local, peer ZID) ([]byte, error)
	PutMiTMSecret(local, peer ZID, secret []byte) error

	// ResetSince, SetName and GetName are listed as optional by spec.md
	// but SPEC_FULL.md §11 requires every Cache implementation to carry
	// them, since a host UI showing "secure since <date>" or a
	// friendly peer name needs somewhere authoritative to read them
	// from.
	ResetSince(local, peer ZID) error
	SetName(local, peer ZID, name string) error
	GetName(local, peer ZID) (string, error)
}

// RetryTask is one scheduled retransmission or timeout, handed to a
// Scheduler by the engine's FSM. Family/Timing pick the cadence (spec
// §5); Fire is invoked with the 0-based retry count so far and returns
// whether the task should be rescheduled again.
type RetryTask struct {
	Family  TaskFamily
	Timing  RetryTiming
	Fire    func(retry int) (reschedule bool)
}

// TaskFamily mirrors internal/scheduler.Family at the public boundary
// (spec §5: Hello/non-Hello/generic/Error each retransmit on their own
// cadence).
type TaskFamily int

const (
	FamilyT1 TaskFamily = iota
	FamilyT2
	FamilyT3
	FamilyError
)

// RetryTiming names the backoff schedule for a RetryTask without
// exposing internal/scheduler's Timing struct at the public boundary.
type RetryTiming struct {
	Start      time.Duration
	Cap        time.Duration
	MaxRetries int
}

// Scheduler is the host-facing retransmission timer contract (spec §5,
// shape fixed by SPEC_FULL.md §8). The default Engine wires
// internal/scheduler.Scheduler behind defaultScheduler so hosts don't
// need to supply their own, but a host embedding zrtp into an existing
// event loop can implement this directly instead of spinning up the
// package's own goroutine-per-timer scheduler.
type Scheduler interface {
	CallLater(stream *Stream, task *RetryTask)
	CancelCallLater(stream *Stream, task *RetryTask) // task == nil cancels all of stream's tasks
	WaitCallLater(stream *Stream)
}

// PacketSender is how the engine hands an encoded ZRTP packet to the
// host's transport (spec §3: "the host owns the socket; the engine
// only ever sees buffers"). Implementations typically wrap an RTP
// session's extension-header injection point.
type PacketSender interface {
	SendPacket(stream *Stream, b []byte) (int, error)
}
