package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

func refLogAt(ref string, at time.Time) *models.Log {
	return &models.Log{Content: "msg", ReferenceID: &ref, CreatedAt: at}
}

func contentLogAt(content string, at time.Time) *models.Log {
	return &models.Log{Content: content, CreatedAt: at}
}

// ---------------------------------------------------------------------------
// GetHistogramsForFolder
// ---------------------------------------------------------------------------

func TestHistograms_AllUniqueReturnsEmptySet(t *testing.T) {
	reader := &fakeLogReader{logs: map[string][]*models.Log{
		"f": {
			contentLogAt("alpha", statsNow.Add(-time.Hour)),
			contentLogAt("beta", statsNow.Add(-2*time.Hour)),
			contentLogAt("gamma", statsNow.Add(-3*time.Hour)),
		},
	}}
	engine := newTestStats(reader)

	histograms, err := engine.GetHistogramsForFolder(context.Background(), "f", false, 1)
	if err != nil {
		t.Fatalf("GetHistogramsForFolder: %v", err)
	}
	if len(histograms) != 0 {
		t.Errorf("got %d histograms for all-unique content, want 0", len(histograms))
	}
}

func TestHistograms_OneDayWindowHas24Boxes(t *testing.T) {
	reader := &fakeLogReader{logs: map[string][]*models.Log{
		"f": {
			// Three in the most recent hour box, one about 12 hours back.
			contentLogAt("timeout", statsNow.Add(-10*time.Minute)),
			contentLogAt("timeout", statsNow.Add(-20*time.Minute)),
			contentLogAt("timeout", statsNow.Add(-30*time.Minute)),
			contentLogAt("timeout", statsNow.Add(-12*time.Hour-30*time.Minute)),
		},
	}}
	engine := newTestStats(reader)

	histograms, err := engine.GetHistogramsForFolder(context.Background(), "f", false, 1)
	if err != nil {
		t.Fatalf("GetHistogramsForFolder: %v", err)
	}
	if len(histograms) != 1 {
		t.Fatalf("got %d histograms, want 1", len(histograms))
	}

	h := histograms[0]
	if h.GroupKey != "timeout" || h.Total != 4 {
		t.Errorf("histogram = %+v, want timeout with total 4", h)
	}
	if len(h.Boxes) != 24 {
		t.Fatalf("one-day window has %d boxes, want 24", len(h.Boxes))
	}
	if h.Boxes[23] != 3 {
		t.Errorf("most recent box = %d, want 3", h.Boxes[23])
	}
	if h.Boxes[11] != 1 {
		t.Errorf("box 11 = %d, want 1", h.Boxes[11])
	}
}

func TestHistograms_MultiDayWindowHasOneBoxPerDay(t *testing.T) {
	reader := &fakeLogReader{logs: map[string][]*models.Log{
		"f": {
			contentLogAt("retry", statsNow.Add(-time.Hour)),
			contentLogAt("retry", statsNow.Add(-6*24*time.Hour-time.Hour)),
		},
	}}
	engine := newTestStats(reader)

	histograms, err := engine.GetHistogramsForFolder(context.Background(), "f", false, 7)
	if err != nil {
		t.Fatalf("GetHistogramsForFolder: %v", err)
	}
	if len(histograms) != 1 {
		t.Fatalf("got %d histograms, want 1", len(histograms))
	}
	if len(histograms[0].Boxes) != 7 {
		t.Errorf("seven-day window has %d boxes, want 7", len(histograms[0].Boxes))
	}
	if histograms[0].Boxes[6] != 1 || histograms[0].Boxes[0] != 1 {
		t.Errorf("boxes = %v, want one count in the first and last box", histograms[0].Boxes)
	}
}

func TestHistograms_TopGroupsCappedAtTwelve(t *testing.T) {
	logs := make([]*models.Log, 0)
	for group := 0; group < 15; group++ {
		// Group i occurs i+2 times so every group clears the uniqueness bar
		// and the ranking is unambiguous.
		for n := 0; n < group+2; n++ {
			logs = append(logs, contentLogAt(fmt.Sprintf("group-%02d", group), statsNow.Add(-time.Hour)))
		}
	}
	reader := &fakeLogReader{logs: map[string][]*models.Log{"f": logs}}
	engine := newTestStats(reader)

	histograms, err := engine.GetHistogramsForFolder(context.Background(), "f", false, 1)
	if err != nil {
		t.Fatalf("GetHistogramsForFolder: %v", err)
	}
	if len(histograms) != 12 {
		t.Fatalf("got %d histograms, want 12", len(histograms))
	}
	if histograms[0].GroupKey != "group-14" || histograms[0].Total != 16 {
		t.Errorf("top group = %+v, want group-14 with 16 occurrences", histograms[0])
	}
	// Totals descend; the three smallest groups fell off the end.
	for i := 1; i < len(histograms); i++ {
		if histograms[i].Total > histograms[i-1].Total {
			t.Errorf("histogram %d total %d exceeds predecessor %d", i, histograms[i].Total, histograms[i-1].Total)
		}
	}
}

func TestHistograms_ReferenceGroupingSkipsLogsWithoutReference(t *testing.T) {
	reader := &fakeLogReader{logs: map[string][]*models.Log{
		"f": {
			refLogAt("order-1", statsNow.Add(-time.Hour)),
			refLogAt("order-1", statsNow.Add(-2*time.Hour)),
			contentLogAt("no reference here", statsNow.Add(-time.Hour)),
			contentLogAt("no reference here", statsNow.Add(-2*time.Hour)),
		},
	}}
	engine := newTestStats(reader)

	histograms, err := engine.GetHistogramsForFolder(context.Background(), "f", true, 1)
	if err != nil {
		t.Fatalf("GetHistogramsForFolder: %v", err)
	}
	if len(histograms) != 1 {
		t.Fatalf("got %d histograms, want 1", len(histograms))
	}
	if histograms[0].GroupKey != "order-1" || histograms[0].Total != 2 {
		t.Errorf("histogram = %+v, want order-1 with total 2", histograms[0])
	}
}
