package zrtp

import (
	"time"

	"github.com/lanikai/zrtp/internal/cache"
	"github.com/lanikai/zrtp/internal/config"
)

// cacheAdapter implements the public Cache interface over one of
// internal/cache's backends, translating between this package's
// (local, peer ZID, SecretSlot) call shape and internal/cache's single
// Key-keyed Entry record.
type cacheAdapter struct {
	backend cache.Cache
}

// NewMemoryCache returns a process-local Cache backed by
// internal/cache.Memory, suitable for tests and hosts that don't need
// retained secrets to survive a restart.
func NewMemoryCache() Cache {
	return &cacheAdapter{backend: cache.NewMemory()}
}

// NewFileCache returns a Cache backed by a single encrypted,
// flock-protected file at path (see internal/cache.File).
func NewFileCache(path string, key []byte) (Cache, error) {
	f, err := cache.NewFile(path, key)
	if err != nil {
		return nil, err
	}
	return &cacheAdapter{backend: f}, nil
}

// NewDistributedCache returns a Cache backed by a groupcache.Group for
// clustered hosts (see internal/cache.Distributed).
func NewDistributedCache(groupName string, cacheBytes int64) Cache {
	return &cacheAdapter{backend: cache.NewDistributed(groupName, cacheBytes)}
}

func (a *cacheAdapter) slotBytes(e *cache.Entry, which SecretSlot) []byte {
	if which == SecretPrevious {
		return e.Previous
	}
	return e.Current
}

func (a *cacheAdapter) Get(local, peer ZID, which SecretSlot) (*RetainedSecret, error) {
	key := cache.NewKey(local, peer)
	e, err := a.backend.Get(key)
	if err != nil {
		if err == cache.ErrNotFound {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	value := a.slotBytes(e, which)
	return &RetainedSecret{
		Value:     append([]byte(nil), value...),
		IsCached:  len(value) > 0,
		IsMatched: false,
		IsWrong:   false,
	}, nil
}

func (a *cacheAdapter) Put(local, peer ZID, which SecretSlot, secret *RetainedSecret) error {
	key := cache.NewKey(local, peer)

	e, err := a.backend.Get(key)
	if err != nil {
		if err != cache.ErrNotFound {
			return err
		}
		e = &cache.Entry{TTL: config.DefaultCacheTTL}
	}

	switch which {
	case SecretPrevious:
		e.Previous = append([]byte(nil), secret.Value...)
	default:
		e.Current = append([]byte(nil), secret.Value...)
	}
	e.LastUsedAt = now()
	if e.SecureSince.IsZero() {
		e.SecureSince = now()
	}
	return a.backend.Put(key, e)
}

func (a *cacheAdapter) GetVerified(local, peer ZID) (bool, error) {
	e, err := a.backend.Get(cache.NewKey(local, peer))
	if err != nil {
		if err == cache.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return e.Verified, nil
}

func (a *cacheAdapter) SetVerified(local, peer ZID, verified bool) error {
	return a.backend.SetVerified(cache.NewKey(local, peer), verified)
}

func (a *cacheAdapter) GetPresharedCounter(local, peer ZID) (uint32, error) {
	e, err := a.backend.Get(cache.NewKey(local, peer))
	if err != nil {
		if err == cache.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return e.PresharedCount, nil
}

func (a *cacheAdapter) IncrementPresharedCounter(local, peer ZID) (uint32, error) {
	return a.backend.IncrementPresharedCounter(cache.NewKey(local, peer))
}

func (a *cacheAdapter) GetMiTMSecret(local, peer ZID) ([]byte, error) {
	v, err := a.backend.GetMiTMSecret(cache.NewKey(local, peer))
	if err == cache.ErrNotFound {
		return nil, ErrCacheMiss
	}
	return v, err
}

func (a *cacheAdapter) PutMiTMSecret(local, peer ZID, secret []byte) error {
	return a.backend.PutMiTMSecret(cache.NewKey(local, peer), secret)
}

func (a *cacheAdapter) ResetSince(local, peer ZID) error {
	return a.backend.ResetSecureSince(cache.NewKey(local, peer))
}

func (a *cacheAdapter) SetName(local, peer ZID, name string) error {
	return a.backend.SetFriendlyName(cache.NewKey(local, peer), name)
}

func (a *cacheAdapter) GetName(local, peer ZID) (string, error) {
	name, err := a.backend.FriendlyName(cache.NewKey(local, peer))
	if err == cache.ErrNotFound {
		return "", nil
	}
	return name, err
}

// now is a seam so tests can be written without depending on wall-clock
// ordering; production code always calls time.Now.
var now = time.Now
