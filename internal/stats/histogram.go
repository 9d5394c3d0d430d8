// histogram.go builds the grouped volume-over-time histograms: logs in a
// window are grouped by exact content or by reference id, the top groups are
// ranked by size, and each group's timestamps are bucketed into equal-width
// time boxes.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

// topGroupLimit caps how many groups a histogram set renders.
const topGroupLimit = 12

// Histogram is one group's volume over the requested window.
type Histogram struct {
	// GroupKey is the exact content string or reference id shared by the
	// group's members.
	GroupKey string `json:"groupKey"`
	// Total is the group's occurrence count in the window.
	Total int `json:"total"`
	// Boxes holds per-bucket counts, oldest box first.
	Boxes []int `json:"boxes"`
}

// GetHistogramsForFolder groups the folder's logs over the last lastXDays
// either by exact content or by reference id, ranks groups by occurrence count
// descending, and buckets the top 12 groups' timestamps into equal-width time
// boxes: 24 boxes for a 1-day window, otherwise one box per day.
//
// When the top group's count is 1 or less every entry is unique, so an empty
// set is returned instead of twelve flat histograms.
func (e *Engine) GetHistogramsForFolder(ctx context.Context, folderID string, groupByReferenceID bool, lastXDays int) ([]Histogram, error) {
	if lastXDays <= 0 {
		lastXDays = 1
	}

	ceiling := e.now()
	floor := ceiling.AddDate(0, 0, -lastXDays)

	logs, err := e.windowLogs(ctx, folderID, floor, ceiling)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]time.Time)
	for _, log := range logs {
		key := groupKey(log, groupByReferenceID)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], log.CreatedAt)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(groups[keys[i]]) != len(groups[keys[j]]) {
			return len(groups[keys[i]]) > len(groups[keys[j]])
		}
		return keys[i] < keys[j]
	})

	if len(keys) == 0 || len(groups[keys[0]]) <= 1 {
		return []Histogram{}, nil
	}
	if len(keys) > topGroupLimit {
		keys = keys[:topGroupLimit]
	}

	boxes := lastXDays
	if lastXDays == 1 {
		boxes = 24
	}
	boxWidth := ceiling.Sub(floor) / time.Duration(boxes)

	histograms := make([]Histogram, 0, len(keys))
	for _, key := range keys {
		stamps := groups[key]
		counts := make([]int, boxes)
		for _, at := range stamps {
			idx := int(at.Sub(floor) / boxWidth)
			if idx < 0 {
				idx = 0
			}
			if idx >= boxes {
				idx = boxes - 1
			}
			counts[idx]++
		}
		histograms = append(histograms, Histogram{
			GroupKey: key,
			Total:    len(stamps),
			Boxes:    counts,
		})
	}

	return histograms, nil
}

// groupKey picks the grouping key for one log. Reference-id grouping skips
// logs that carry no reference id.
func groupKey(log *models.Log, byReferenceID bool) string {
	if byReferenceID {
		if log.ReferenceID == nil {
			return ""
		}
		return *log.ReferenceID
	}
	return log.Content
}
