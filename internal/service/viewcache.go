package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/campusworks/edubase/internal/domain"
)

// ViewCache holds rendered entity views in memcached for display
// reads. Writers must invalidate after commit, and anything that reads
// in order to write goes to the primary store, never through here.
type ViewCache struct {
	mc  *memcache.Client
	ttl int32
}

func NewViewCache(mc *memcache.Client, ttl time.Duration) *ViewCache {
	return &ViewCache{
		mc:  mc,
		ttl: int32(ttl / time.Second),
	}
}

func viewKey(kind domain.Kind, id int64) string {
	return fmt.Sprintf("view/%s/%d", kind, id)
}

func (c *ViewCache) Get(kind domain.Kind, id int64) ([]byte, bool) {
	if c.mc == nil {
		return nil, false
	}

	item, err := c.mc.Get(viewKey(kind, id))
	if err != nil {
		return nil, false
	}

	return item.Value, true
}

func (c *ViewCache) Set(kind domain.Kind, id int64, body []byte) {
	if c.mc == nil {
		return
	}

	err := c.mc.Set(&memcache.Item{
		Key:        viewKey(kind, id),
		Value:      body,
		Expiration: c.ttl,
	})
	if err != nil {
		slog.Warn("failed to store view cache entry",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (c *ViewCache) Invalidate(kind domain.Kind, id int64) {
	if c.mc == nil {
		return
	}

	err := c.mc.Delete(viewKey(kind, id))
	if err != nil && err != memcache.ErrCacheMiss {
		slog.Warn("failed to invalidate view cache entry",
			slog.String("kind", string(kind)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}
