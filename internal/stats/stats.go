// Package stats computes log-volume analytics over folders: backward-walking
// frequency series, percentage-change signals, day-over-day insights, and
// grouped time-box histograms, with an incremental Redis cache for the
// multi-day windows.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

// LogReader is the slice of the log repository the engine needs.
type LogReader interface {
	CountInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) (int, error)
	ListInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) ([]*models.Log, error)
	OldestCreatedAt(ctx context.Context, folderID string) (*time.Time, error)
}

// FolderLister enumerates folders that hold at least one log.
type FolderLister interface {
	ListWithLogs(ctx context.Context, orgID string) ([]*models.Folder, error)
}

// ActivityRanker ranks a user's most-visited folder paths.
type ActivityRanker interface {
	TopCheckedPathsSince(ctx context.Context, userID string, since time.Time, limit int) ([]string, error)
}

// Engine computes folder statistics.
type Engine struct {
	logs     LogReader
	folders  FolderLister
	activity ActivityRanker
	cache    *WindowCache
	now      func() time.Time
}

// New creates a stats engine. cache may be nil; multi-day histogram windows
// then always hit the database directly.
func New(logs LogReader, folders FolderLister, activity ActivityRanker, cache *WindowCache) *Engine {
	return &Engine{logs: logs, folders: folders, activity: activity, cache: cache, now: time.Now}
}

// WithNow substitutes the clock; tests use this to pin "now".
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GetLogFrequenciesByInterval returns per-interval log counts walking backward
// from now in fixed chunks of intervalMinutes, most recent first. The walk
// stops early once the next window would extend before the folder's oldest
// log, so a young folder yields a shorter series; ignoreOldest disables the
// clamp and always returns stepsBack counts.
func (e *Engine) GetLogFrequenciesByInterval(ctx context.Context, folderID string, intervalMinutes, stepsBack int, ignoreOldest bool) ([]int, error) {
	if intervalMinutes <= 0 || stepsBack <= 0 {
		return nil, fmt.Errorf("interval and steps must be positive")
	}

	var oldest *time.Time
	if !ignoreOldest {
		var err error
		oldest, err = e.logs.OldestCreatedAt(ctx, folderID)
		if err != nil {
			return nil, err
		}
	}

	interval := time.Duration(intervalMinutes) * time.Minute
	ceiling := e.now()
	counts := make([]int, 0, stepsBack)
	for i := 0; i < stepsBack; i++ {
		floor := ceiling.Add(-interval)
		if oldest != nil && floor.Before(*oldest) && i > 0 {
			break
		}

		count, err := e.logs.CountInWindow(ctx, folderID, floor, ceiling)
		if err != nil {
			return nil, err
		}
		counts = append(counts, count)
		ceiling = floor
	}

	return counts, nil
}

// GetPercentChangeInFrequencyOfMostRecentLogs compares the most recent
// interval's count against the average of all older intervals in the window,
// as a percentage rounded to two decimals. Fewer than two data points, or an
// older-average of zero, yields 0.
func (e *Engine) GetPercentChangeInFrequencyOfMostRecentLogs(ctx context.Context, folderID string, intervalMinutes, stepsBack int) (float64, error) {
	counts, err := e.GetLogFrequenciesByInterval(ctx, folderID, intervalMinutes, stepsBack, false)
	if err != nil {
		return 0, err
	}
	return percentChange(counts), nil
}

// percentChange computes round(100 * (recent - avgOlder) / avgOlder, 2) over a
// most-recent-first count series.
func percentChange(counts []int) float64 {
	if len(counts) < 2 {
		return 0
	}

	recent := float64(counts[0])
	var sum float64
	for _, c := range counts[1:] {
		sum += float64(c)
	}
	avgOlder := sum / float64(len(counts)-1)
	if avgOlder == 0 {
		return 0
	}

	return round2(100 * (recent - avgOlder) / avgOlder)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
