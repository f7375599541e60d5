package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/pagebrief/internal/cache"
)

type countingAdapter struct {
	calls int
	out   string
	err   error
}

func (c *countingAdapter) Name() string { return "fake" }

func (c *countingAdapter) Infer(ctx context.Context, req Request) (string, error) {
	c.calls++
	return c.out, c.err
}

func TestCached_HitSkipsInner(t *testing.T) {
	inner := &countingAdapter{out: "summary"}
	c := &Cached{Inner: inner, Cache: &cache.ResultCache{Dir: t.TempDir()}, Model: "m"}
	req := Request{Task: TaskSummarize, Text: "page"}

	for i := 0; i < 3; i++ {
		out, err := c.Infer(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "summary", out)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := c.Infer(context.Background(), Request{Task: TaskAnswer, Text: "page", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "different task must miss")
}

func TestCached_ErrorsAreNotStored(t *testing.T) {
	inner := &countingAdapter{err: errors.New("down")}
	c := &Cached{Inner: inner, Cache: &cache.ResultCache{Dir: t.TempDir()}}

	_, err := c.Infer(context.Background(), Request{Text: "p"})
	require.Error(t, err)
	inner.err, inner.out = nil, "ok"
	out, err := c.Infer(context.Background(), Request{Text: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_NilCachePassesThrough(t *testing.T) {
	inner := &countingAdapter{out: "x"}
	c := &Cached{Inner: inner}
	_, _ = c.Infer(context.Background(), Request{})
	_, _ = c.Infer(context.Background(), Request{})
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "fake", c.Name())
}
