// Package cache implements the ZRTP shared-secret cache interface
// (spec §6): get/put of retained secrets keyed by a ZID pair, a
// verified flag, a monotonic Preshared counter, and an optional MiTM
// secret, plus three concrete backends (in-memory, encrypted file, and
// a groupcache-backed distributed cache for clustered hosts).
package cache

import (
	"time"

	"golang.org/x/xerrors"
)

// Slot names which retained-secret generation is being addressed.
type Slot int

const (
	SlotCurrent Slot = iota
	SlotPrevious
)

// Entry is one ZID-pair's persisted record (spec §6 "Persisted state").
type Entry struct {
	Current  []byte // rs1, 64 bytes
	Previous []byte // rs2, 64 bytes

	Verified       bool
	LastUsedAt     time.Time
	TTL            time.Duration
	SecureSince    time.Time // zero if never secure
	FriendlyName   string
	PresharedCount uint32

	MiTMSecret []byte // optional, present only for trusted-MiTM roles
}

// Key identifies one ZID pair's cache entry, per the reference layout
// in spec §6: "[zid_high][zid_low] where zid_high is the
// lexicographically greater of the two ZIDs".
type Key struct {
	High [12]byte
	Low  [12]byte
}

// NewKey canonicalizes a pair of ZIDs into a Key; order of the
// arguments does not matter.
func NewKey(a, b [12]byte) Key {
	for i := 0; i < 12; i++ {
		if a[i] > b[i] {
			return Key{High: a, Low: b}
		}
		if a[i] < b[i] {
			return Key{High: b, Low: a}
		}
	}
	return Key{High: a, Low: b}
}

// ErrNotFound is returned by Get when no entry exists for the key; it
// is a normal outcome (first-ever call between two ZIDs), not an error
// condition callers need to log.
var ErrNotFound = xerrors.New("cache: not found")

// Cache is the engine-facing shared-secret store. All methods are
// keyed by a Key (a ZID pair); implementations must provide their own
// mutual exclusion, since the engine passes ZID pairs and byte strings
// only (spec §6).
type Cache interface {
	Get(key Key) (*Entry, error)
	Put(key Key, entry *Entry) error

	SetVerified(key Key, verified bool) error
	IncrementPresharedCounter(key Key) (uint32, error)

	GetMiTMSecret(key Key) ([]byte, error)
	PutMiTMSecret(key Key, secret []byte) error

	// ResetSecureSince clears one entry's SecureSince marker, used when
	// a host forces re-verification of a previously-secure pair.
	ResetSecureSince(key Key) error

	SetFriendlyName(key Key, name string) error
	FriendlyName(key Key) (string, error)

	// Sweep discards any entry whose LastUsedAt is before cutoff.
	// Optional per spec §6; implementations may no-op. Distinct from
	// ResetSecureSince, which targets a single entry rather than
	// performing a maintenance pass over the whole store.
	Sweep(cutoff time.Time) error
}
