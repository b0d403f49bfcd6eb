package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/model"
)

const studioCacheTTL = 5 * time.Minute

// CachedStore wraps a Store with a redis read-through cache on the studio
// lookups that sit on the hot path of every trigger. Writes invalidate;
// cache failures fall through to the underlying store.
type CachedStore struct {
	Store
	redis *redis.Client
}

func NewCachedStore(inner Store, client *redis.Client) *CachedStore {
	return &CachedStore{Store: inner, redis: client}
}

func studioIDKey(id uuid.UUID) string   { return "studio:id:" + id.String() }
func studioKeyKey(apiKey string) string { return "studio:key:" + apiKey }
func studioSlugKey(slug string) string  { return "studio:slug:" + slug }

func (c *CachedStore) cachedStudio(ctx context.Context, key string, fetch func() (*model.Studio, error)) (*model.Studio, error) {
	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		studio := &model.Studio{}
		if err := json.Unmarshal([]byte(data), studio); err == nil {
			return studio, nil
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling through")
	}

	studio, err := fetch()
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(studio); err == nil {
		if err := c.redis.Set(ctx, key, encoded, studioCacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return studio, nil
}

func (c *CachedStore) StudioByID(ctx context.Context, id uuid.UUID) (*model.Studio, error) {
	return c.cachedStudio(ctx, studioIDKey(id), func() (*model.Studio, error) {
		return c.Store.StudioByID(ctx, id)
	})
}

func (c *CachedStore) StudioByAPIKey(ctx context.Context, apiKey string) (*model.Studio, error) {
	return c.cachedStudio(ctx, studioKeyKey(apiKey), func() (*model.Studio, error) {
		return c.Store.StudioByAPIKey(ctx, apiKey)
	})
}

func (c *CachedStore) StudioBySlug(ctx context.Context, slug string) (*model.Studio, error) {
	return c.cachedStudio(ctx, studioSlugKey(slug), func() (*model.Studio, error) {
		return c.Store.StudioBySlug(ctx, slug)
	})
}

func (c *CachedStore) UpdateStudio(ctx context.Context, studio *model.Studio) error {
	if err := c.Store.UpdateStudio(ctx, studio); err != nil {
		return err
	}
	c.invalidate(ctx, studio)
	return nil
}

func (c *CachedStore) invalidate(ctx context.Context, studio *model.Studio) {
	keys := []string{studioIDKey(studio.ID), studioKeyKey(studio.APIKey), studioSlugKey(studio.Slug)}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("studio_id", studio.ID.String()).Msg("Cache invalidation failed")
	}
}
