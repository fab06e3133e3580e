package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPatternCacheCompilesCaseInsensitive(t *testing.T) {
	cache := NewPatternCache(zap.NewNop())

	re, ok := cache.Get("mock.*data")
	require.True(t, ok)
	assert.True(t, re.MatchString("Create MOCK api DATA"))
	assert.False(t, re.MatchString("nothing relevant"))
}

func TestPatternCacheReturnsSameCompiledPattern(t *testing.T) {
	cache := NewPatternCache(zap.NewNop())

	first, ok := cache.Get("demo.+")
	require.True(t, ok)
	second, ok := cache.Get("demo.+")
	require.True(t, ok)
	assert.Same(t, first, second)

	compiled, fallback := cache.Stats()
	assert.Equal(t, 1, compiled)
	assert.Equal(t, 0, fallback)
}

func TestPatternCacheRemembersInvalidPattern(t *testing.T) {
	cache := NewPatternCache(zap.NewNop())

	re, ok := cache.Get("a(")
	assert.False(t, ok)
	assert.Nil(t, re)

	// Second lookup hits the invalid set, not the compiler.
	_, ok = cache.Get("a(")
	assert.False(t, ok)

	compiled, fallback := cache.Stats()
	assert.Equal(t, 0, compiled)
	assert.Equal(t, 1, fallback)
}

func TestPatternCacheWarm(t *testing.T) {
	cache := NewPatternCache(zap.NewNop())

	cache.Warm([]string{"mock.*", "[bad", "demo$"})

	compiled, fallback := cache.Stats()
	assert.Equal(t, 2, compiled)
	assert.Equal(t, 1, fallback)
}
