package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/golang/groupcache"
	"golang.org/x/xerrors"
)

// Distributed is a groupcache-backed Cache for clustered deployments
// (e.g. an SBC fronted by several ZRTP-capable media nodes sharing one
// logical secret store). Each node holds the authoritative copy of the
// entries it has itself Put; reads for entries owned by a peer node are
// served by groupcache's Getter, which consults PeerPicker to fetch and
// locally cache the serialized entry. This matches groupcache's
// read-heavy, owner-populates model: there is no cluster-wide Set, so
// Put always writes to this node's local authoritative store and lets
// groupcache's peer-to-peer Get propagate the value to read requests
// from other nodes.
type Distributed struct {
	local *Memory
	group *groupcache.Group
}

// NewDistributed wires a groupcache.Group named groupName (must be
// unique per process if multiple Distributed caches run side by side)
// over a local authoritative Memory store, with cacheBytes controlling
// groupcache's local LRU size for entries fetched from peers.
func NewDistributed(groupName string, cacheBytes int64) *Distributed {
	local := NewMemory()
	d := &Distributed{local: local}
	d.group = groupcache.NewGroup(groupName, cacheBytes, groupcache.GetterFunc(
		func(ctx context.Context, id string, dest groupcache.Sink) error {
			key, err := decodeKeyString(id)
			if err != nil {
				return err
			}
			entry, err := local.Get(key)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
				return err
			}
			return dest.SetBytes(buf.Bytes())
		}))
	return d
}

func (d *Distributed) Get(key Key) (*Entry, error) {
	var data []byte
	if err := d.group.Get(context.Background(), encodeKeyString(key), groupcache.ByteSliceSink(&data)); err != nil {
		if xerrors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Errorf("cache: groupcache Get: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put writes to the local authoritative store only; see the Distributed
// doc comment for why groupcache has no cluster-wide write path.
func (d *Distributed) Put(key Key, entry *Entry) error {
	return d.local.Put(key, entry)
}

func (d *Distributed) SetVerified(key Key, verified bool) error {
	return d.local.SetVerified(key, verified)
}

func (d *Distributed) IncrementPresharedCounter(key Key) (uint32, error) {
	return d.local.IncrementPresharedCounter(key)
}

func (d *Distributed) GetMiTMSecret(key Key) ([]byte, error) {
	return d.local.GetMiTMSecret(key)
}

func (d *Distributed) PutMiTMSecret(key Key, secret []byte) error {
	return d.local.PutMiTMSecret(key, secret)
}

func (d *Distributed) ResetSecureSince(key Key) error {
	return d.local.ResetSecureSince(key)
}

func (d *Distributed) SetFriendlyName(key Key, name string) error {
	return d.local.SetFriendlyName(key, name)
}

func (d *Distributed) FriendlyName(key Key) (string, error) {
	return d.local.FriendlyName(key)
}

func (d *Distributed) Sweep(cutoff time.Time) error {
	return d.local.Sweep(cutoff)
}

func encodeKeyString(k Key) string {
	return string(k.High[:]) + string(k.Low[:])
}

func decodeKeyString(s string) (Key, error) {
	if len(s) != 24 {
		return Key{}, xerrors.Errorf("cache: malformed groupcache key length %d", len(s))
	}
	var k Key
	copy(k.High[:], s[:12])
	copy(k.Low[:], s[12:])
	return k, nil
}
