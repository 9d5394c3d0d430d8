// cache.go implements the incremental window cache backing multi-day
// histogram reads. A folder's raw log list for [floor, ceiling) is cached in
// Redis; on a hit only logs newer than the cached ceiling are fetched and
// merged, and entries older than the new floor are trimmed before re-caching.
// Entries carry no TTL: an entry is invalidated only by being superseded with
// a newer ceiling.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/telemetry"
)

// cacheableWindow is the smallest span worth caching. Single-day reads are
// cheap enough to go straight to the database.
const cacheableWindow = 24 * time.Hour

// WindowCache caches per-folder log windows in Redis.
type WindowCache struct {
	rdb redis.UniversalClient
}

// NewWindowCache creates a window cache on the given Redis client.
func NewWindowCache(rdb redis.UniversalClient) *WindowCache {
	return &WindowCache{rdb: rdb}
}

type windowEntry struct {
	Floor   time.Time     `json:"floor"`
	Ceiling time.Time     `json:"ceiling"`
	Logs    []*models.Log `json:"logs"`
}

func windowKey(folderID string) string {
	return "logfold:stats:window:" + folderID
}

func (c *WindowCache) load(ctx context.Context, folderID string) (*windowEntry, error) {
	data, err := c.rdb.Get(ctx, windowKey(folderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read window cache: %w", err)
	}

	entry := &windowEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("failed to decode window cache entry: %w", err)
	}
	return entry, nil
}

func (c *WindowCache) store(ctx context.Context, folderID string, entry *windowEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode window cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, windowKey(folderID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write window cache: %w", err)
	}
	return nil
}

// windowLogs returns the folder's logs in [floor, ceiling), newest first,
// going through the supersession cache for multi-day windows. Cache failures
// degrade to a direct read; a stale cache must never fail the request.
func (e *Engine) windowLogs(ctx context.Context, folderID string, floor, ceiling time.Time) ([]*models.Log, error) {
	if e.cache == nil || ceiling.Sub(floor) <= cacheableWindow {
		return e.logs.ListInWindow(ctx, folderID, floor, ceiling)
	}

	entry, err := e.cache.load(ctx, folderID)
	if err != nil {
		log.Printf("Stats cache: read failed for folder %s: %v", folderID, err)
		entry = nil
	}

	// A cached window that starts after the requested floor cannot serve
	// this read; refetch the whole span.
	if entry == nil || entry.Floor.After(floor) {
		telemetry.StatsCacheMissesTotal.Inc()
		logs, err := e.logs.ListInWindow(ctx, folderID, floor, ceiling)
		if err != nil {
			return nil, err
		}
		e.cacheWindow(ctx, folderID, &windowEntry{Floor: floor, Ceiling: ceiling, Logs: logs})
		return logs, nil
	}

	telemetry.StatsCacheHitsTotal.Inc()

	// Fetch only what the cache has not seen, then merge newest-first and
	// drop entries that fell out of the requested window.
	fresh, err := e.logs.ListInWindow(ctx, folderID, entry.Ceiling, ceiling)
	if err != nil {
		return nil, err
	}

	merged := make([]*models.Log, 0, len(fresh)+len(entry.Logs))
	merged = append(merged, fresh...)
	for _, cached := range entry.Logs {
		if cached.CreatedAt.Before(floor) {
			continue
		}
		merged = append(merged, cached)
	}

	e.cacheWindow(ctx, folderID, &windowEntry{Floor: floor, Ceiling: ceiling, Logs: merged})
	return merged, nil
}

func (e *Engine) cacheWindow(ctx context.Context, folderID string, entry *windowEntry) {
	if err := e.cache.store(ctx, folderID, entry); err != nil {
		log.Printf("Stats cache: write failed for folder %s: %v", folderID, err)
	}
}
