package stats

import (
	"context"
	"testing"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeLogReader serves counts from a fixed set of timestamped logs so window
// math is exercised for real instead of being stubbed per call.
type fakeLogReader struct {
	logs   map[string][]*models.Log
	oldest map[string]time.Time

	countCalls int
}

func (r *fakeLogReader) CountInWindow(_ context.Context, folderID string, floor, ceiling time.Time) (int, error) {
	r.countCalls++
	count := 0
	for _, log := range r.logs[folderID] {
		if !log.CreatedAt.Before(floor) && log.CreatedAt.Before(ceiling) {
			count++
		}
	}
	return count, nil
}

func (r *fakeLogReader) ListInWindow(_ context.Context, folderID string, floor, ceiling time.Time) ([]*models.Log, error) {
	var out []*models.Log
	for _, log := range r.logs[folderID] {
		if !log.CreatedAt.Before(floor) && log.CreatedAt.Before(ceiling) {
			out = append(out, log)
		}
	}
	return out, nil
}

func (r *fakeLogReader) OldestCreatedAt(_ context.Context, folderID string) (*time.Time, error) {
	at, ok := r.oldest[folderID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

type fakeFolderLister struct {
	folders []*models.Folder
}

func (l *fakeFolderLister) ListWithLogs(context.Context, string) ([]*models.Folder, error) {
	return l.folders, nil
}

type fakeActivityRanker struct {
	paths []string
}

func (a *fakeActivityRanker) TopCheckedPathsSince(context.Context, string, time.Time, int) ([]string, error) {
	return a.paths, nil
}

var statsNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestStats(reader *fakeLogReader) *Engine {
	if reader.logs == nil {
		reader.logs = make(map[string][]*models.Log)
	}
	if reader.oldest == nil {
		reader.oldest = make(map[string]time.Time)
	}
	e := New(reader, &fakeFolderLister{}, &fakeActivityRanker{}, nil)
	return e.WithNow(func() time.Time { return statsNow })
}

func logAt(at time.Time) *models.Log {
	return &models.Log{Content: "msg", CreatedAt: at}
}

// ---------------------------------------------------------------------------
// GetLogFrequenciesByInterval
// ---------------------------------------------------------------------------

func TestFrequencies_MostRecentFirst(t *testing.T) {
	reader := &fakeLogReader{logs: map[string][]*models.Log{
		"f": {
			logAt(statsNow.Add(-10 * time.Minute)), // interval 0
			logAt(statsNow.Add(-30 * time.Minute)), // interval 0
			logAt(statsNow.Add(-90 * time.Minute)), // interval 1
		},
	}}
	engine := newTestStats(reader)

	counts, err := engine.GetLogFrequenciesByInterval(context.Background(), "f", 60, 3, true)
	if err != nil {
		t.Fatalf("GetLogFrequenciesByInterval: %v", err)
	}

	want := []int{2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("got %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("interval %d = %d, want %d", i, counts[i], want[i])
		}
	}
}

func TestFrequencies_ClampStopsAtOldestLog(t *testing.T) {
	reader := &fakeLogReader{
		logs: map[string][]*models.Log{
			"f": {logAt(statsNow.Add(-90 * time.Minute))},
		},
		oldest: map[string]time.Time{"f": statsNow.Add(-150 * time.Minute)},
	}
	engine := newTestStats(reader)

	counts, err := engine.GetLogFrequenciesByInterval(context.Background(), "f", 60, 24, false)
	if err != nil {
		t.Fatalf("GetLogFrequenciesByInterval: %v", err)
	}

	// The oldest log sits 150 minutes back, so the second 60-minute window is
	// the last one fully answerable; the walk stops there instead of
	// returning 24 mostly empty intervals.
	if len(counts) != 2 {
		t.Fatalf("got %d intervals %v, want 2", len(counts), counts)
	}
	if counts[0] != 0 || counts[1] != 1 {
		t.Errorf("got %v, want [0 1]", counts)
	}
}

func TestFrequencies_YoungFolderStillYieldsOnePoint(t *testing.T) {
	reader := &fakeLogReader{
		logs: map[string][]*models.Log{
			"f": {logAt(statsNow.Add(-time.Minute))},
		},
		oldest: map[string]time.Time{"f": statsNow.Add(-time.Minute)},
	}
	engine := newTestStats(reader)

	counts, err := engine.GetLogFrequenciesByInterval(context.Background(), "f", 60, 24, false)
	if err != nil {
		t.Fatalf("GetLogFrequenciesByInterval: %v", err)
	}
	if len(counts) != 1 || counts[0] != 1 {
		t.Errorf("got %v, want [1]", counts)
	}
}

func TestFrequencies_RejectsBadArguments(t *testing.T) {
	engine := newTestStats(&fakeLogReader{})

	if _, err := engine.GetLogFrequenciesByInterval(context.Background(), "f", 0, 5, true); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := engine.GetLogFrequenciesByInterval(context.Background(), "f", 60, 0, true); err == nil {
		t.Error("zero steps accepted")
	}
}

// ---------------------------------------------------------------------------
// percentChange
// ---------------------------------------------------------------------------

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name   string
		counts []int
		want   float64
	}{
		{"recent above older", []int{3, 2}, 50},
		{"recent below older average", []int{3, 4, 3, 4, 3, 4, 3, 4}, -16},
		{"rounded to two decimals", []int{2, 3, 3, 3}, -33.33},
		{"repeating fraction rounded", []int{3, 4, 3}, -14.29},
		{"single point", []int{7}, 0},
		{"empty", nil, 0},
		{"all older zero", []int{5, 0, 0, 0}, 0},
		{"no movement", []int{2, 2, 2}, 0},
	}

	for _, tc := range cases {
		if got := percentChange(tc.counts); got != tc.want {
			t.Errorf("%s: percentChange(%v) = %v, want %v", tc.name, tc.counts, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// GetInsights
// ---------------------------------------------------------------------------

func TestGetInsights_PartitionAndSort(t *testing.T) {
	todayStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	yesterday := todayStart.Add(-12 * time.Hour)

	reader := &fakeLogReader{logs: map[string][]*models.Log{
		// visited: 2 yesterday, 3 today => +50%
		"visited": {
			logAt(yesterday), logAt(yesterday.Add(time.Hour)),
			logAt(todayStart.Add(time.Hour)), logAt(todayStart.Add(2 * time.Hour)), logAt(todayStart.Add(3 * time.Hour)),
		},
		// spiky: 1 yesterday, 4 today => +300%
		"spiky": {
			logAt(yesterday),
			logAt(todayStart.Add(time.Hour)), logAt(todayStart.Add(2 * time.Hour)),
			logAt(todayStart.Add(3 * time.Hour)), logAt(todayStart.Add(4 * time.Hour)),
		},
		// dipped: 2 yesterday, 1 today => -50%
		"dipped": {
			logAt(yesterday), logAt(yesterday.Add(time.Hour)),
			logAt(todayStart.Add(time.Hour)),
		},
		// flat: same both days, filtered out
		"flat": {logAt(yesterday), logAt(todayStart.Add(time.Hour))},
		// fresh: nothing yesterday, change undefined, filtered out
		"fresh": {logAt(todayStart.Add(time.Hour))},
	}}
	folders := &fakeFolderLister{folders: []*models.Folder{
		{ID: "visited", FullPath: "/app/checkout"},
		{ID: "spiky", FullPath: "/app/errors"},
		{ID: "dipped", FullPath: "/app/signups"},
		{ID: "flat", FullPath: "/app/steady"},
		{ID: "fresh", FullPath: "/app/new"},
	}}
	activity := &fakeActivityRanker{paths: []string{"/app/checkout"}}

	engine := New(reader, folders, activity, nil).WithNow(func() time.Time { return statsNow })

	insights, err := engine.GetInsights(context.Background(), "org-1", "user-1", time.UTC)
	if err != nil {
		t.Fatalf("GetInsights: %v", err)
	}

	if len(insights.FrequentlyVisited) != 1 || insights.FrequentlyVisited[0].FolderID != "visited" {
		t.Errorf("frequently visited = %+v, want the checkout folder", insights.FrequentlyVisited)
	}
	if len(insights.Other) != 2 {
		t.Fatalf("other has %d folders, want 2", len(insights.Other))
	}
	// Sorted by absolute change: +300 before -50.
	if insights.Other[0].FolderID != "spiky" || insights.Other[1].FolderID != "dipped" {
		t.Errorf("other order = [%s %s], want [spiky dipped]", insights.Other[0].FolderID, insights.Other[1].FolderID)
	}
	if insights.Other[0].PercentChange != 300 {
		t.Errorf("spiky change = %v, want 300", insights.Other[0].PercentChange)
	}
}

func TestDayOverDayChange_ZeroYesterday(t *testing.T) {
	if got := dayOverDayChange(10, 0); got != 0 {
		t.Errorf("dayOverDayChange(10, 0) = %v, want 0", got)
	}
	if got := dayOverDayChange(1, 2); got != -50 {
		t.Errorf("dayOverDayChange(1, 2) = %v, want -50", got)
	}
}
