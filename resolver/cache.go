package resolver

import (
	"errors"

	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/pandora-prime/bitcoin-pro/descriptor"
)

// DefaultScriptCacheSize is the number of (generator, index) entries kept
// by the script cache.
const DefaultScriptCacheSize = 4096

type scriptKey struct {
	descriptor string
	index      uint32
}

// cachedScripts holds the outcome of building the scripts of one generator
// at one index. Building is deterministic, so failures are cached as well.
type cachedScripts struct {
	scripts map[descriptor.Category][]byte
	err     error
}

// Size returns the cost of the entry. Every entry counts as one.
func (c *cachedScripts) Size() (uint64, error) {
	return 1, nil
}

type scriptCache struct {
	lru *lru.Cache[scriptKey, *cachedScripts]
}

func newScriptCache(capacity uint64) *scriptCache {
	if capacity == 0 {
		capacity = DefaultScriptCacheSize
	}
	return &scriptCache{
		lru: lru.NewCache[scriptKey, *cachedScripts](capacity),
	}
}

// pkScripts returns the scriptPubKeys of g at index, building them on a
// cache miss.
func (c *scriptCache) pkScripts(g *descriptor.Generator, desc string,
	index uint32) (map[descriptor.Category][]byte, error) {

	key := scriptKey{descriptor: desc, index: index}
	entry, err := c.lru.Get(key)
	switch {
	case err == nil:
		return entry.scripts, entry.err

	case !errors.Is(err, cache.ErrElementNotFound):
		log.Warnf("Script cache lookup for %s at %d failed: %v",
			desc, index, err)
	}

	scripts, err := g.PkScripts(index)
	if _, perr := c.lru.Put(key, &cachedScripts{scripts, err}); perr != nil {
		log.Warnf("Unable to cache scripts of %s at %d: %v", desc,
			index, perr)
	}
	return scripts, err
}
