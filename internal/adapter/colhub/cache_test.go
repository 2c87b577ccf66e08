package colhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCache(t *testing.T) {
	t.Run("get after put", func(t *testing.T) {
		c := newCatalogCache(2)
		c.put("a", "uuid-a")

		v, ok := c.get("a")

		require.True(t, ok)
		assert.Equal(t, "uuid-a", v)
	})

	t.Run("miss", func(t *testing.T) {
		c := newCatalogCache(2)

		_, ok := c.get("absent")

		assert.False(t, ok)
	})

	t.Run("put overwrites", func(t *testing.T) {
		c := newCatalogCache(2)
		c.put("a", "uuid-a")
		c.put("a", "uuid-a2")

		v, ok := c.get("a")

		require.True(t, ok)
		assert.Equal(t, "uuid-a2", v)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := newCatalogCache(2)
		c.put("a", "uuid-a")
		c.put("b", "uuid-b")
		c.put("c", "uuid-c")

		_, ok := c.get("a")
		assert.False(t, ok, "oldest entry should be evicted")
		_, ok = c.get("b")
		assert.True(t, ok)
		_, ok = c.get("c")
		assert.True(t, ok)
	})

	t.Run("get refreshes recency", func(t *testing.T) {
		c := newCatalogCache(2)
		c.put("a", "uuid-a")
		c.put("b", "uuid-b")

		_, ok := c.get("a")
		require.True(t, ok)

		c.put("c", "uuid-c")

		_, ok = c.get("a")
		assert.True(t, ok, "recently read entry must survive the eviction")
		_, ok = c.get("b")
		assert.False(t, ok)
	})
}
