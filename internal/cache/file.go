package cache

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// File is a single-file, ChaCha20-Poly1305-encrypted, advisory-locked
// Cache backend: the whole entry table is (de)serialized on every
// operation and the file is protected end-to-end with unix.Flock so
// multiple processes on one host (e.g. separate call legs) can share
// one cache file safely.
type File struct {
	mu   sync.Mutex
	path string
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewFile opens (creating if necessary) a cache file at path, encrypted
// under key (must be chacha20poly1305.KeySize bytes — callers typically
// derive this from a host-provided passphrase via a KDF, out of scope
// for this package).
func NewFile(path string, key []byte) (*File, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, xerrors.Errorf("cache: constructing AEAD: %w", err)
	}
	f := &File{path: path, aead: aead}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := f.writeLocked(make(map[Key]*Entry)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *File) withLock(fn func(entries map[Key]*Entry) (map[Key]*Entry, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return xerrors.Errorf("cache: opening %s: %w", f.path, err)
	}
	defer fh.Close()

	if err := unix.Flock(int(fh.Fd()), unix.LOCK_EX); err != nil {
		return xerrors.Errorf("cache: locking %s: %w", f.path, err)
	}
	defer unix.Flock(int(fh.Fd()), unix.LOCK_UN)

	entries, err := f.decode(fh)
	if err != nil {
		return err
	}

	updated, err := fn(entries)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil // read-only operation
	}

	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := fh.Truncate(0); err != nil {
		return err
	}
	return f.encodeTo(fh, updated)
}

func (f *File) writeLocked(entries map[Key]*Entry) error {
	return f.withLock(func(map[Key]*Entry) (map[Key]*Entry, error) {
		return entries, nil
	})
}

func (f *File) decode(r io.Reader) (map[Key]*Entry, error) {
	ciphertext, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 {
		return make(map[Key]*Entry), nil
	}

	n := f.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, xerrors.New("cache: corrupt cache file")
	}
	nonce, box := ciphertext[:n], ciphertext[n:]
	plain, err := f.aead.Open(nil, nonce, box, nil)
	if err != nil {
		return nil, xerrors.Errorf("cache: decrypting cache file: %w", err)
	}

	var entries map[Key]*Entry
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(&entries); err != nil {
		return nil, xerrors.Errorf("cache: decoding cache file: %w", err)
	}
	return entries, nil
}

func (f *File) encodeTo(w io.Writer, entries map[Key]*Entry) error {
	var plain bytes.Buffer
	if err := gob.NewEncoder(&plain).Encode(entries); err != nil {
		return xerrors.Errorf("cache: encoding cache file: %w", err)
	}

	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	box := f.aead.Seal(nil, nonce, plain.Bytes(), nil)

	if _, err := w.Write(nonce); err != nil {
		return err
	}
	_, err := w.Write(box)
	return err
}

func (f *File) Get(key Key) (*Entry, error) {
	var result *Entry
	err := f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		copyEntry := *e
		result = &copyEntry
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *File) Put(key Key, entry *Entry) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		copyEntry := *entry
		entries[key] = &copyEntry
		return entries, nil
	})
}

func (f *File) SetVerified(key Key, verified bool) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		e.Verified = verified
		return entries, nil
	})
}

func (f *File) IncrementPresharedCounter(key Key) (uint32, error) {
	var count uint32
	err := f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		e.PresharedCount++
		count = e.PresharedCount
		return entries, nil
	})
	return count, err
}

func (f *File) GetMiTMSecret(key Key) ([]byte, error) {
	var secret []byte
	err := f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok || len(e.MiTMSecret) == 0 {
			return nil, ErrNotFound
		}
		secret = append([]byte(nil), e.MiTMSecret...)
		return nil, nil
	})
	return secret, err
}

func (f *File) PutMiTMSecret(key Key, secret []byte) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			e = &Entry{}
			entries[key] = e
		}
		e.MiTMSecret = append([]byte(nil), secret...)
		return entries, nil
	})
}

func (f *File) ResetSecureSince(key Key) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		e.SecureSince = time.Time{}
		return entries, nil
	})
}

func (f *File) SetFriendlyName(key Key, name string) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		e.FriendlyName = name
		return entries, nil
	})
}

func (f *File) FriendlyName(key Key) (string, error) {
	var name string
	err := f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		e, ok := entries[key]
		if !ok {
			return nil, ErrNotFound
		}
		name = e.FriendlyName
		return nil, nil
	})
	return name, err
}

func (f *File) Sweep(cutoff time.Time) error {
	return f.withLock(func(entries map[Key]*Entry) (map[Key]*Entry, error) {
		for k, e := range entries {
			if e.LastUsedAt.Before(cutoff) {
				delete(entries, k)
			}
		}
		return entries, nil
	})
}
