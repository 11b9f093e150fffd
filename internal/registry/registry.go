// Package registry implements the five pluggable ZRTP component
// categories (hash, cipher, public-key scheme, SRTP auth-tag length, SAS
// encoder). Each category is a process-wide map from a 4-character
// identifier to a descriptor, selected per-session by intersecting the
// local preference list with the peer's advertised list.
//
// Grounded on the teacher's internal/media.OpenFunc registry
// (github.com/lanikai/alohartc/internal/media/registry.go): a tag keyed
// map of constructors, looked up by name, with an error on no match.
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/lanikai/zrtp/internal/logging"
)

var log = logging.DefaultLogger.WithTag("zrtp.registry")

// Category distinguishes the five component registries.
type Category int

const (
	CategoryHash Category = iota
	CategoryCipher
	CategoryPublicKey
	CategoryAuthTag
	CategorySAS
)

func (c Category) String() string {
	switch c {
	case CategoryHash:
		return "hash"
	case CategoryCipher:
		return "cipher"
	case CategoryPublicKey:
		return "pktype"
	case CategoryAuthTag:
		return "authtag"
	case CategorySAS:
		return "sas"
	default:
		return "unknown"
	}
}

// Descriptor is the common shape of every registered component: a
// 4-character wire identifier, a numeric id for fast comparisons, and a
// self-test hook run once at registration.
type Descriptor struct {
	Name     string // 4-character ZRTP identifier, e.g. "S256", "AES1", "DH3k"
	Category Category

	// SelfTest runs a known-answer test for the component. A failing
	// self-test prevents the component from ever being offered.
	SelfTest func() error

	// Impl is the category-specific vtable (HashFactory, CipherFactory,
	// PublicKeyFactory, AuthTagSpec, SASEncoder). Callers type-assert it
	// after a lookup.
	Impl interface{}
}

// Registry is a single process-wide component table, parameterized by
// category so each of the five registries is independently lockable.
type Registry struct {
	mu    sync.RWMutex
	byCat map[Category]map[string]*Descriptor
	ok    map[Category]map[string]bool // self-test outcome, cached
}

// NewRegistry creates an empty registry. The engine owns exactly one of
// these for its process lifetime.
func NewRegistry() *Registry {
	return &Registry{
		byCat: make(map[Category]map[string]*Descriptor),
		ok:    make(map[Category]map[string]bool),
	}
}

// Register adds a component descriptor, running its self-test
// immediately. A failing self-test is logged and the component is
// recorded as unavailable rather than panicking the caller — this
// mirrors the original library's behavior of disabling, not aborting,
// on a bad self-test.
func (r *Registry) Register(d *Descriptor) error {
	if len(d.Name) != 4 {
		return errors.Errorf("registry: identifier %q is not 4 characters", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byCat[d.Category] == nil {
		r.byCat[d.Category] = make(map[string]*Descriptor)
		r.ok[d.Category] = make(map[string]bool)
	}
	r.byCat[d.Category][d.Name] = d

	passed := true
	if d.SelfTest != nil {
		if err := d.SelfTest(); err != nil {
			log.Error("self-test failed for %s component %q: %s", d.Category, d.Name, err)
			passed = false
		}
	}
	r.ok[d.Category][d.Name] = passed
	return nil
}

// Lookup returns the descriptor for name in category, if registered and
// self-test-passing.
func (r *Registry) Lookup(cat Category, name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.ok[cat][name] {
		return nil, false
	}
	d, found := r.byCat[cat][name]
	return d, found
}

// Available returns the names of every usable (self-test-passing)
// component in category, sorted by name for determinism.
func (r *Registry) Available(cat Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, passed := range r.ok[cat] {
		if passed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Intersect picks the first entry of localPrefs (in order) that also
// appears in peerAdvertised, i.e. "local preference order, restricted to
// what the peer can do". Returns ok=false if nothing matches.
func Intersect(localPrefs, peerAdvertised []string) (string, bool) {
	peerSet := make(map[string]bool, len(peerAdvertised))
	for _, p := range peerAdvertised {
		peerSet[p] = true
	}
	for _, l := range localPrefs {
		if peerSet[l] {
			return l, true
		}
	}
	return "", false
}
