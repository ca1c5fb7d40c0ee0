// Package preview caches the per-requirement card previews (the domain-object
// names shown on requirement cards) in Redis, so reloading a page of cards
// does not fan out to the domain-object service every time.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	previewKeyPrefix = "preview:req:" // preview:req:{project_id}:{requirement_id}
	previewTTL       = 10 * time.Minute
)

// Entry is one requirement's cached preview.
type Entry struct {
	RequirementID     string    `json:"requirementId"`
	DomainObjectNames []string  `json:"domainObjectNames"`
	CachedAt          time.Time `json:"cachedAt"`
}

// Cache stores previews as JSON blobs with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: previewTTL}
}

func (c *Cache) key(projectID, requirementID string) string {
	return fmt.Sprintf("%s%s:%s", previewKeyPrefix, projectID, requirementID)
}

// Get returns the cached preview, or ok=false when nothing is cached.
func (c *Cache) Get(ctx context.Context, projectID, requirementID string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, c.key(projectID, requirementID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get preview: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, false, fmt.Errorf("unmarshal preview: %w", err)
	}
	return &e, true, nil
}

// Put stores a preview with the cache TTL.
func (c *Cache) Put(ctx context.Context, projectID, requirementID string, names []string) error {
	e := Entry{
		RequirementID:     requirementID,
		DomainObjectNames: names,
		CachedAt:          time.Now(),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	if err := c.client.Set(ctx, c.key(projectID, requirementID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set preview: %w", err)
	}
	return nil
}

// Invalidate drops the cached previews of the given requirements, called after
// anything that changes their domain objects.
func (c *Cache) Invalidate(ctx context.Context, projectID string, requirementIDs ...string) error {
	if len(requirementIDs) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, rid := range requirementIDs {
		pipe.Del(ctx, c.key(projectID, rid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidate previews: %w", err)
	}
	return nil
}
