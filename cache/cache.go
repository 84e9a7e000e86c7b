// Package cache persists rendered artifacts on disk, keyed by a digest of
// everything the rendering depends on.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/ffi-bindgen/errors"
)

// SchemaVersion is bumped whenever Entry or the key derivation changes.
const SchemaVersion uint16 = 2

// Digest identifies one cache entry.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// Key digests the msgpack encoding of parts, in order. Every part is
// first reduced to plain msgpack values with maps rewritten as key-sorted
// pair lists, so equal inputs give equal digests whatever their map
// iteration order.
func Key(parts ...any) (Digest, error) {
	h := sha256.New()
	enc := msgpack.NewEncoder(h)
	if err := enc.EncodeUint16(SchemaVersion); err != nil {
		return Digest{}, errors.Wrap(errors.PhaseCache, errors.KindInvalidData, err, "encode cache key")
	}
	for _, p := range parts {
		v, err := canonical(p)
		if err != nil {
			return Digest{}, errors.Wrap(errors.PhaseCache, errors.KindInvalidData, err, "encode cache key")
		}
		if err := enc.Encode(v); err != nil {
			return Digest{}, errors.Wrap(errors.PhaseCache, errors.KindInvalidData, err, "encode cache key")
		}
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// canonical round-trips v through msgpack into untyped values and sorts
// every map it finds.
func canonical(v any) (any, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})
	out, err := dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	return sortMaps(out)
}

type mapEntry struct {
	encoded []byte // msgpack encoding of k, the sort key
	k, v    any
}

func sortMaps(v any) (any, error) {
	switch t := v.(type) {
	case []any:
		for i := range t {
			var err error
			if t[i], err = sortMaps(t[i]); err != nil {
				return nil, err
			}
		}
		return t, nil
	case map[any]any:
		entries := make([]mapEntry, 0, len(t))
		for k, val := range t {
			kb, err := msgpack.Marshal(k)
			if err != nil {
				return nil, err
			}
			sv, err := sortMaps(val)
			if err != nil {
				return nil, err
			}
			entries = append(entries, mapEntry{encoded: kb, k: k, v: sv})
		}
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].encoded, entries[j].encoded) < 0
		})
		out := make([]any, 0, 2*len(entries))
		for _, e := range entries {
			out = append(out, e.k, e.v)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, 2*len(keys))
		for _, k := range keys {
			sv, err := sortMaps(t[k])
			if err != nil {
				return nil, err
			}
			out = append(out, k, sv)
		}
		return out, nil
	default:
		return v, nil
	}
}

// Entry is one cached rendering.
type Entry struct {
	Schema    uint16
	Namespace string
	ABI       []byte
	Host      []byte
	Created   int64 // unix seconds
}

// DiskCache stores entries as msgpack files. It is safe for concurrent
// use, and a nil *DiskCache is a cache that never hits.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Open returns a cache rooted at dir, or at $XDG_CACHE_HOME/ffi-bindgen
// (falling back to ~/.cache) when dir is empty.
func Open(dir string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(errors.PhaseCache, errors.KindNotFound, err, "locate cache directory")
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "ffi-bindgen")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "create cache directory")
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "artifacts", key.String()+".mp")
}

// Put writes e under key, replacing any previous entry atomically.
func (c *DiskCache) Put(key Digest, e *Entry) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e.Schema = SchemaVersion
	if e.Created == 0 {
		e.Created = time.Now().Unix()
	}

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "create cache directory")
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "create cache entry")
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(e); err != nil {
		_ = f.Close()
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidData, err, "encode cache entry")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "write cache entry")
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "commit cache entry")
	}
	return nil
}

// Get reads the entry under key into out. Entries written by another
// schema version count as misses.
func (c *DiskCache) Get(key Digest, out *Entry) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "open cache entry")
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return false, errors.Wrap(errors.PhaseCache, errors.KindInvalidData, err, "decode cache entry")
	}
	if e.Schema != SchemaVersion {
		return false, nil
	}
	*out = e
	return true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "drop cache")
	}
	if err := os.RemoveAll(old); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "drop cache")
	}
	return os.MkdirAll(c.dir, 0o755)
}
