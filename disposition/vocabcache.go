package disposition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const vocabKey = "disposition:status_vocab"

// VocabSource is the slice of Repository the cache wraps.
type VocabSource interface {
	StatusVocabulary(ctx context.Context) ([]StatusInfo, error)
}

// VocabCache is a redis read-through cache for the status vocabulary. The
// catalogue is reference data read on every disposition screen and changes
// only by migration, so a short TTL is plenty.
type VocabCache struct {
	client *redis.Client
	source VocabSource
	ttl    time.Duration
}

func NewVocabCache(client *redis.Client, source VocabSource, ttl time.Duration) *VocabCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VocabCache{client: client, source: source, ttl: ttl}
}

// StatusVocabulary returns the cached catalogue, falling back to the source
// on a miss or on any cache failure. Cache errors never fail the read.
func (c *VocabCache) StatusVocabulary(ctx context.Context) ([]StatusInfo, error) {
	raw, err := c.client.Get(ctx, vocabKey).Result()
	if err == nil {
		var cached []StatusInfo
		if err := json.Unmarshal([]byte(raw), &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	vocab, err := c.source.StatusVocabulary(ctx)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(vocab); err == nil {
		// Best effort; a failed SET just means the next read misses too.
		c.client.Set(ctx, vocabKey, body, c.ttl)
	}

	return vocab, nil
}

// Invalidate drops the cached catalogue, for use after vocabulary migrations.
func (c *VocabCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, vocabKey).Err(); err != nil {
		return fmt.Errorf("disposition: invalidate vocabulary cache: %w", err)
	}
	return nil
}
