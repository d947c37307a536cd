// Package helpercache memoizes generated values by a structural key while
// letting the garbage collector reclaim entries nobody references.
//
// Keys are arbitrary values encoded with canonical CBOR and hashed, so two
// keys with equal contents share an entry regardless of identity.
// Concurrent requests for the same missing key run the constructor once.
package helpercache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"
	"weak"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"
)

var log = commonlog.GetLogger("jmaker.helpercache")

var encMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Key is the digest of a canonically encoded key value.
type Key [sha256.Size]byte

func (k Key) String() string { return hex.EncodeToString(k[:8]) }

// KeyOf encodes v canonically and hashes it.
func KeyOf(v any) (Key, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return Key{}, fmt.Errorf("helpercache: encoding key: %w", err)
	}
	return sha256.Sum256(data), nil
}

// Cache maps keys to weakly held values. The zero value is not usable;
// call New.
type Cache[T any] struct {
	name    string
	mu      sync.Mutex
	entries map[Key]weak.Pointer[T]
	group   singleflight.Group
}

// New creates an empty cache. The name appears in log messages.
func New[T any](name string) *Cache[T] {
	return &Cache[T]{name: name, entries: make(map[Key]weak.Pointer[T])}
}

// Get returns the live value for key, if any.
func (c *Cache[T]) Get(key any) (*T, bool, error) {
	k, err := KeyOf(key)
	if err != nil {
		return nil, false, err
	}
	v := c.lookup(k)
	return v, v != nil, nil
}

func (c *Cache[T]) lookup(k Key) *T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[k]; ok {
		return p.Value()
	}
	return nil
}

// GetOrCreate returns the live value for key, calling create when there is
// none. create runs without the cache lock held and at most once per key
// among concurrent callers. Errors are not cached.
func (c *Cache[T]) GetOrCreate(key any, create func() (*T, error)) (*T, error) {
	k, err := KeyOf(key)
	if err != nil {
		return nil, err
	}
	if v := c.lookup(k); v != nil {
		log.Debugf("%s: hit %s", c.name, k)
		return v, nil
	}

	result, err, _ := c.group.Do(string(k[:]), func() (any, error) {
		if v := c.lookup(k); v != nil {
			return v, nil
		}
		log.Debugf("%s: miss %s", c.name, k)
		v, err := create()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("helpercache: %s: constructor returned nil", c.name)
		}
		c.mu.Lock()
		c.entries[k] = weak.Make(v)
		c.mu.Unlock()
		runtime.AddCleanup(v, c.evict, k)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

// evict drops k once its value has been collected, unless a newer value
// has replaced it.
func (c *Cache[T]) evict(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[k]; ok && p.Value() == nil {
		delete(c.entries, k)
		log.Debugf("%s: evicted %s", c.name, k)
	}
}

// Len returns the number of entries, including any whose values were
// collected but not yet evicted.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
