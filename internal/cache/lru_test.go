package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

func ctxWithAnswer(answer string) *types.ArchaeologicalContext {
	return &types.ArchaeologicalContext{
		FilePath:   "auth.py",
		Question:   "why?",
		Answer:     answer,
		Confidence: 0.5,
		Sources:    []types.ContextSource{{CommitSHA: "abc", RelevanceScore: 0.9}},
	}
}

func TestLRUCache_StrictRecency(t *testing.T) {
	c := NewLRUCache(2)

	c.Put("k1", ctxWithAnswer("one"))
	c.Put("k2", ctxWithAnswer("two"))
	_, ok := c.Get("k1")
	require.True(t, ok)
	evicted := c.Put("k3", ctxWithAnswer("three"))

	assert.True(t, evicted)
	assert.True(t, c.Contains("k1"))
	assert.True(t, c.Contains("k3"))
	assert.False(t, c.Contains("k2"))
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_UpdateMarksRecent(t *testing.T) {
	c := NewLRUCache(2)

	c.Put("k1", ctxWithAnswer("one"))
	c.Put("k2", ctxWithAnswer("two"))
	c.Put("k1", ctxWithAnswer("one again"))
	c.Put("k3", ctxWithAnswer("three"))

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "one again", got.Answer)
	assert.False(t, c.Contains("k2"))
}

func TestLRUCache_NeverEvictsJustInserted(t *testing.T) {
	c := NewLRUCache(1)

	c.Put("a", ctxWithAnswer("a"))
	c.Put("b", ctxWithAnswer("b"))

	assert.True(t, c.Contains("b"))
	assert.False(t, c.Contains("a"))
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestLRUCache_Disabled(t *testing.T) {
	c := NewLRUCache(0)

	assert.False(t, c.Enabled())
	assert.False(t, c.Put("k", ctxWithAnswer("x")))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.MaxSize())
	c.Clear()
}

func TestLRUCache_ValuesAreCopied(t *testing.T) {
	c := NewLRUCache(4)
	original := ctxWithAnswer("stable")
	c.Put("k", original)

	original.Answer = "mutated"
	original.Sources[0].CommitSHA = "mutated"

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "stable", got.Answer)
	assert.Equal(t, "abc", got.Sources[0].CommitSHA)

	got.Sources[0].CommitSHA = "changed again"
	again, _ := c.Get("k")
	assert.Equal(t, "abc", again.Sources[0].CommitSHA)
}

func TestLRUCache_Clear(t *testing.T) {
	c := NewLRUCache(3)
	c.Put("a", ctxWithAnswer("a"))
	c.Put("b", ctxWithAnswer("b"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.MaxSize())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	const maxSize = 16
	c := NewLRUCache(maxSize)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*200+i)%40)
				c.Put(key, ctxWithAnswer(key))
				c.Get(key)
				assert.LessOrEqual(t, c.Len(), maxSize)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), maxSize)
}
