// insights.go computes the day-over-day folder digest shown on the home view.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// FolderInsight is one folder's day-over-day movement.
type FolderInsight struct {
	FolderID      string  `json:"folderId"`
	FullPath      string  `json:"fullPath"`
	TodayCount    int     `json:"todayCount"`
	PercentChange float64 `json:"percentChange"`
}

// Insights partitions moving folders into the user's frequently visited set
// and everything else.
type Insights struct {
	FrequentlyVisited []FolderInsight `json:"frequentlyVisited"`
	Other             []FolderInsight `json:"other"`
}

const (
	visitedRankLimit  = 5
	visitedRankWindow = 2 * 30 * 24 * time.Hour
)

// GetInsights computes, for every folder in the organization holding at least
// one log, today's count and the percentage change against yesterday, with day
// boundaries taken in the given timezone. Folders with zero change are
// dropped. The survivors are split into "among the user's 5 most-visited
// folders over the last two months" and "other"; the latter is sorted by
// descending absolute change.
func (e *Engine) GetInsights(ctx context.Context, orgID, userID string, loc *time.Location) (*Insights, error) {
	if loc == nil {
		loc = time.UTC
	}

	folders, err := e.folders.ListWithLogs(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := e.now().In(loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	insights := make([]FolderInsight, 0, len(folders))
	for _, folder := range folders {
		today, err := e.logs.CountInWindow(ctx, folder.ID, todayStart, now)
		if err != nil {
			return nil, fmt.Errorf("failed to count today's logs for folder %s: %w", folder.ID, err)
		}
		yesterday, err := e.logs.CountInWindow(ctx, folder.ID, yesterdayStart, todayStart)
		if err != nil {
			return nil, fmt.Errorf("failed to count yesterday's logs for folder %s: %w", folder.ID, err)
		}

		change := dayOverDayChange(today, yesterday)
		if change == 0 {
			continue
		}

		insights = append(insights, FolderInsight{
			FolderID:      folder.ID,
			FullPath:      folder.FullPath,
			TodayCount:    today,
			PercentChange: change,
		})
	}

	visited, err := e.activity.TopCheckedPathsSince(ctx, userID, now.Add(-visitedRankWindow), visitedRankLimit)
	if err != nil {
		return nil, err
	}
	visitedSet := make(map[string]struct{}, len(visited))
	for _, path := range visited {
		visitedSet[path] = struct{}{}
	}

	result := &Insights{
		FrequentlyVisited: make([]FolderInsight, 0),
		Other:             make([]FolderInsight, 0),
	}
	for _, insight := range insights {
		if _, ok := visitedSet[insight.FullPath]; ok {
			result.FrequentlyVisited = append(result.FrequentlyVisited, insight)
		} else {
			result.Other = append(result.Other, insight)
		}
	}

	sort.SliceStable(result.Other, func(i, j int) bool {
		return math.Abs(result.Other[i].PercentChange) > math.Abs(result.Other[j].PercentChange)
	})

	return result, nil
}

// dayOverDayChange mirrors the series rule: a zero yesterday count yields 0
// rather than dividing by zero, which downstream filtering then drops.
func dayOverDayChange(today, yesterday int) float64 {
	if yesterday == 0 {
		return 0
	}
	return round2(100 * float64(today-yesterday) / float64(yesterday))
}
