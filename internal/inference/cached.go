package inference

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/pagebrief/internal/cache"
)

// Cached serves repeated requests from an on-disk result cache.
type Cached struct {
	Inner Adapter
	Cache *cache.ResultCache
	// Model distinguishes entries of the same backend with different models.
	Model string
}

func (c *Cached) Name() string { return c.Inner.Name() }

func (c *Cached) Infer(ctx context.Context, req Request) (string, error) {
	if c.Cache == nil {
		return c.Inner.Infer(ctx, req)
	}
	key := cache.ResultKey(c.Inner.Name(), c.Model, req.Task.String()+"\n"+req.Prompt())
	if text, ok, err := c.Cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("result cache read failed")
	} else if ok {
		log.Debug().Str("backend", c.Inner.Name()).Msg("result cache hit")
		return text, nil
	}

	text, err := c.Inner.Infer(ctx, req)
	if err != nil {
		return "", err
	}
	if saveErr := c.Cache.Save(ctx, key, cache.ResultEntry{Backend: c.Inner.Name(), Model: c.Model, Text: text}); saveErr != nil {
		log.Warn().Err(saveErr).Msg("result cache write failed")
	}
	return text, nil
}
