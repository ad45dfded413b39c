package filecache

import (
	"errors"
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
	"github.com/Sumatoshi-tech/pmdminer/pkg/persist"
)

const cacheBasename = "cache"

// snapshot is the gob-serializable on-disk shape of a Cache, a flat map
// keyed by CacheKey.
type snapshot struct {
	Entries map[mining.CacheKey][]mining.Finding
}

// binCodec is the gob codec under the ".bin" extension of the cache file.
type binCodec struct{ *persist.GobCodec }

func (binCodec) Extension() string { return ".bin" }

var cachePersister = persist.NewPersister[snapshot](cacheBasename, binCodec{persist.NewGobCodec()})

// Save writes the cache's current contents to "<dir>/cache.bin", so the
// next batch against the same repository can skip re-analyzing unchanged
// file content.
func (c *Cache) Save(dir string) error {
	err := cachePersister.Save(dir, func() *snapshot {
		return &snapshot{Entries: c.Snapshot()}
	})
	if err != nil {
		return fmt.Errorf("%w: save cache: %w", mining.ErrDisk, err)
	}

	return nil
}

// Load restores cache entries previously written by Save. A missing file
// is not an error: the cache simply starts empty.
func (c *Cache) Load(dir string) error {
	var loaded snapshot

	err := cachePersister.Load(dir, func(s *snapshot) { loaded = *s })
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("%w: load cache: %w", mining.ErrCacheCorrupt, err)
	}

	c.Restore(loaded.Entries)

	return nil
}
