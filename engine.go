package zrtp

import (
	"sync"

	"github.com/lanikai/zrtp/internal/components"
	"github.com/lanikai/zrtp/internal/config"
	"github.com/lanikai/zrtp/internal/registry"
)

// Engine owns everything process-global for one ZRTP-capable endpoint:
// the component registry, the entropy accumulator, and the
// host-supplied callback bundle (cache, scheduler, event handler).
// Sessions are created from an Engine and released back to it; the
// Engine itself is created once at host startup and torn down once
// every Session has been released.
type Engine struct {
	mu sync.RWMutex

	localZID ZID
	registry *registry.Registry
	entropy  *entropyAccumulator

	cache     Cache
	scheduler Scheduler
	handler   EventHandler
	profile   *config.SessionProfile

	sessions map[*Session]struct{}
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithCache overrides the default in-memory Cache.
func WithCache(c Cache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithScheduler overrides the default built-in Scheduler.
func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) { e.scheduler = s }
}

// WithEventHandler overrides the default no-op EventHandler.
func WithEventHandler(h EventHandler) EngineOption {
	return func(e *Engine) { e.handler = h }
}

// WithProfile overrides the default SessionProfile (spec §6). Hosts
// that need to decode a profile from a generic config map should call
// internal/config's equivalent decode path upstream and pass the
// result in via this option; the root package re-derives nothing from
// raw maps itself.
func WithProfile(p *config.SessionProfile) EngineOption {
	return func(e *Engine) { e.profile = p }
}

// NewEngine constructs an Engine for localZID, registering the
// built-in hash/cipher/pubkey/authtag/SAS components and applying any
// options.
func NewEngine(localZID ZID, opts ...EngineOption) *Engine {
	e := &Engine{
		localZID: localZID,
		registry: registry.NewRegistry(),
		entropy:  newEntropyAccumulator(),
		cache:    NewMemoryCache(),
		handler:  NopEventHandler{},
		profile:  config.Default(),
		sessions: make(map[*Session]struct{}),
	}
	components.RegisterDefaults(e.registry)

	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler == nil {
		e.scheduler = NewDefaultScheduler()
	}
	return e
}

// NewSession creates a Session for a new peer; peerZID is learned
// incrementally as the peer's first Hello arrives and may be the zero
// value until then.
func (e *Engine) NewSession(peerZID ZID) *Session {
	s := &Session{
		engine:   e,
		localZID: e.localZID,
		peerZID:  peerZID,
		profile:  e.profile,
		streams:  make(map[uint32]*Stream),
	}

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	return s
}

// ReleaseSession tears down every stream in s and forgets it.
func (e *Engine) ReleaseSession(s *Session) {
	s.mu.Lock()
	streams := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	for _, st := range streams {
		st.Close()
	}

	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}
