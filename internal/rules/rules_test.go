package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRuleStore struct {
	rules     []*models.Rule
	created   []*models.Rule
	triggered []string
	deleted   bool
}

func (s *fakeRuleStore) Create(_ context.Context, rule *models.Rule) error {
	s.created = append(s.created, rule)
	return nil
}

func (s *fakeRuleStore) GetByID(_ context.Context, id string) (*models.Rule, error) {
	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (s *fakeRuleStore) ListByOrganization(context.Context, string) ([]*models.Rule, error) {
	return s.rules, nil
}

func (s *fakeRuleStore) ListByUser(context.Context, string) ([]*models.Rule, error) {
	return s.rules, nil
}

func (s *fakeRuleStore) MarkTriggered(_ context.Context, ruleID string, _ time.Time) error {
	s.triggered = append(s.triggered, ruleID)
	return nil
}

func (s *fakeRuleStore) Delete(context.Context, string, string) (bool, error) {
	return s.deleted, nil
}

type fakeCounter struct {
	counts map[string]int

	lastFloor   time.Time
	lastCeiling time.Time
}

func (c *fakeCounter) CountInWindow(_ context.Context, folderID string, floor, ceiling time.Time) (int, error) {
	c.lastFloor, c.lastCeiling = floor, ceiling
	return c.counts[folderID], nil
}

type fakeUsers struct {
	users map[string]*models.User
}

func (u *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return u.users[id], nil
}

type fakeDispatcher struct {
	emails []string
	texts  []string
	err    error
}

func (d *fakeDispatcher) SendEmail(to, _, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.emails = append(d.emails, to)
	return nil
}

func (d *fakeDispatcher) SendSMS(to, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.texts = append(d.texts, to)
	return nil
}

var evalNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeRuleStore, counter *fakeCounter, users *fakeUsers, disp *fakeDispatcher) *Engine {
	if users == nil {
		users = &fakeUsers{users: make(map[string]*models.User)}
	}
	e := New(store, counter, users, nil)
	if disp != nil {
		e.notifier = disp
	}
	return e.WithNow(func() time.Time { return evalNow })
}

// ---------------------------------------------------------------------------
// IsTriggered level tests
// ---------------------------------------------------------------------------

func TestIsTriggered_CrossesAbove(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{"f": 3}}
	engine := newTestEngine(&fakeRuleStore{}, counter, nil, nil)
	rule := &models.Rule{
		ID:                 "r1",
		FolderID:           "f",
		ComparisonType:     models.ComparisonCrossesAbove,
		ComparisonValue:    2,
		LookbackTimeInMins: 30,
	}

	triggered, err := engine.IsTriggered(context.Background(), rule)
	if err != nil {
		t.Fatalf("IsTriggered: %v", err)
	}
	if !triggered {
		t.Error("count 3 above bound 2 did not trigger")
	}

	// The comparison is strict: a count equal to the bound does not fire.
	counter.counts["f"] = 2
	triggered, err = engine.IsTriggered(context.Background(), rule)
	if err != nil {
		t.Fatalf("IsTriggered: %v", err)
	}
	if triggered {
		t.Error("count equal to the bound triggered")
	}
}

func TestIsTriggered_CrossesBelow(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{"f": 1}}
	engine := newTestEngine(&fakeRuleStore{}, counter, nil, nil)
	rule := &models.Rule{
		ID:                 "r1",
		FolderID:           "f",
		ComparisonType:     models.ComparisonCrossesBelow,
		ComparisonValue:    3,
		LookbackTimeInMins: 30,
	}

	triggered, err := engine.IsTriggered(context.Background(), rule)
	if err != nil {
		t.Fatalf("IsTriggered: %v", err)
	}
	if !triggered {
		t.Error("count 1 below bound 3 did not trigger")
	}

	counter.counts["f"] = 3
	triggered, err = engine.IsTriggered(context.Background(), rule)
	if err != nil {
		t.Fatalf("IsTriggered: %v", err)
	}
	if triggered {
		t.Error("count equal to the bound triggered")
	}
}

func TestIsTriggered_WindowEndsNow(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{}}
	engine := newTestEngine(&fakeRuleStore{}, counter, nil, nil)
	rule := &models.Rule{
		ID:                 "r1",
		FolderID:           "f",
		ComparisonType:     models.ComparisonCrossesAbove,
		ComparisonValue:    1,
		LookbackTimeInMins: 45,
	}

	if _, err := engine.IsTriggered(context.Background(), rule); err != nil {
		t.Fatalf("IsTriggered: %v", err)
	}
	if !counter.lastCeiling.Equal(evalNow) {
		t.Errorf("window ceiling = %v, want %v", counter.lastCeiling, evalNow)
	}
	if want := evalNow.Add(-45 * time.Minute); !counter.lastFloor.Equal(want) {
		t.Errorf("window floor = %v, want %v", counter.lastFloor, want)
	}
}

// ---------------------------------------------------------------------------
// RunAllRulesForOrganization
// ---------------------------------------------------------------------------

func TestRunAllRules_TriggeredRuleStampedAndEmailed(t *testing.T) {
	store := &fakeRuleStore{rules: []*models.Rule{
		{
			ID: "hot", FolderID: "f", UserID: "u1",
			ComparisonType: models.ComparisonCrossesAbove, ComparisonValue: 1,
			LookbackTimeInMins: 10, NotificationType: models.NotificationEmail,
		},
		{
			ID: "cold", FolderID: "quiet", UserID: "u1",
			ComparisonType: models.ComparisonCrossesAbove, ComparisonValue: 1,
			LookbackTimeInMins: 10, NotificationType: models.NotificationEmail,
		},
	}}
	counter := &fakeCounter{counts: map[string]int{"f": 5}}
	users := &fakeUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "owner@example.com"},
	}}
	disp := &fakeDispatcher{}
	engine := newTestEngine(store, counter, users, disp)

	if err := engine.RunAllRulesForOrganization(context.Background(), "org-1"); err != nil {
		t.Fatalf("RunAllRulesForOrganization: %v", err)
	}

	if len(store.triggered) != 1 || store.triggered[0] != "hot" {
		t.Errorf("triggered = %v, want [hot]", store.triggered)
	}
	if len(disp.emails) != 1 || disp.emails[0] != "owner@example.com" {
		t.Errorf("emails sent to %v, want [owner@example.com]", disp.emails)
	}
}

func TestRunAllRules_SMSWithoutPhoneDoesNotStopSweep(t *testing.T) {
	phone := "+15550001111"
	store := &fakeRuleStore{rules: []*models.Rule{
		{
			ID: "no-phone", FolderID: "f", UserID: "silent",
			ComparisonType: models.ComparisonCrossesAbove, ComparisonValue: 1,
			LookbackTimeInMins: 10, NotificationType: models.NotificationSMS,
		},
		{
			ID: "ok", FolderID: "f", UserID: "reachable",
			ComparisonType: models.ComparisonCrossesAbove, ComparisonValue: 1,
			LookbackTimeInMins: 10, NotificationType: models.NotificationSMS,
		},
	}}
	counter := &fakeCounter{counts: map[string]int{"f": 5}}
	users := &fakeUsers{users: map[string]*models.User{
		"silent":    {ID: "silent", Email: "a@example.com"},
		"reachable": {ID: "reachable", Email: "b@example.com", PhoneNumber: &phone},
	}}
	disp := &fakeDispatcher{}
	engine := newTestEngine(store, counter, users, disp)

	if err := engine.RunAllRulesForOrganization(context.Background(), "org-1"); err != nil {
		t.Fatalf("RunAllRulesForOrganization: %v", err)
	}

	if len(disp.texts) != 1 || disp.texts[0] != phone {
		t.Errorf("texts sent to %v, want [%s]", disp.texts, phone)
	}
	// Both rules still get stamped; only delivery failed for the first.
	if len(store.triggered) != 2 {
		t.Errorf("triggered %d rules, want 2", len(store.triggered))
	}
}

// ---------------------------------------------------------------------------
// CreateRule / DeleteRule
// ---------------------------------------------------------------------------

func TestCreateRule_Validation(t *testing.T) {
	store := &fakeRuleStore{}
	engine := newTestEngine(store, &fakeCounter{counts: map[string]int{}}, nil, nil)
	ctx := context.Background()

	good := models.Rule{
		FolderID:           "f",
		ComparisonType:     models.ComparisonCrossesAbove,
		ComparisonValue:    5,
		LookbackTimeInMins: 60,
		NotificationType:   models.NotificationEmail,
	}

	if err := engine.CreateRule(ctx, &good); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	bad := good
	bad.ComparisonType = "equals"
	if err := engine.CreateRule(ctx, &bad); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("bad comparison type: got %v, want validation error", err)
	}

	bad = good
	bad.NotificationType = "pager"
	if err := engine.CreateRule(ctx, &bad); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("bad notification type: got %v, want validation error", err)
	}

	bad = good
	bad.LookbackTimeInMins = 0
	if err := engine.CreateRule(ctx, &bad); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("zero lookback: got %v, want validation error", err)
	}

	if len(store.created) != 1 {
		t.Errorf("persisted %d rules, want 1", len(store.created))
	}
}

func TestDeleteRule_NotOwnedReportsNotFound(t *testing.T) {
	store := &fakeRuleStore{deleted: false}
	engine := newTestEngine(store, &fakeCounter{counts: map[string]int{}}, nil, nil)

	err := engine.DeleteRule(context.Background(), "r1", "someone-else")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("got %v, want not-found", err)
	}

	store.deleted = true
	if err := engine.DeleteRule(context.Background(), "r1", "owner"); err != nil {
		t.Errorf("own rule: %v", err)
	}
}
