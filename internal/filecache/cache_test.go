package filecache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/pmdminer/internal/filecache"
	"github.com/Sumatoshi-tech/pmdminer/internal/mining"
)

func TestCache_StoreThenGet(t *testing.T) {
	c := filecache.New()
	key := mining.CacheKey{ContentHash: filecache.ContentHash([]byte("class A {}")), RulesetID: "java-basic"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Store(key, []mining.Finding{{File: "A.java", RuleName: "EmptyClass"}})

	findings, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "EmptyClass", findings[0].RuleName)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCache_StoreIsWriteOnce(t *testing.T) {
	c := filecache.New()
	key := mining.CacheKey{ContentHash: "abc", RulesetID: "java-basic"}

	c.Store(key, []mining.Finding{{RuleName: "First"}})
	c.Store(key, []mining.Finding{{RuleName: "Second"}})

	findings, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, findings, 1)
	assert.Equal(t, "First", findings[0].RuleName)
}

func TestCache_SaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()

	c := filecache.New()
	key := mining.CacheKey{ContentHash: "abc", RulesetID: "java-basic"}
	c.Store(key, []mining.Finding{{RuleName: "First"}})

	require.NoError(t, c.Save(dir))

	restored := filecache.New()
	require.NoError(t, restored.Load(dir))

	findings, ok := restored.Get(key)
	require.True(t, ok)
	assert.Equal(t, "First", findings[0].RuleName)
}

func TestCache_LoadMissingFileIsNotAnError(t *testing.T) {
	restored := filecache.New()
	require.NoError(t, restored.Load(t.TempDir()))
}

func TestContentHash_IsDeterministicAndDistinguishesContent(t *testing.T) {
	a := filecache.ContentHash([]byte("class A {}"))
	b := filecache.ContentHash([]byte("class A {}"))
	c := filecache.ContentHash([]byte("class B {}"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
