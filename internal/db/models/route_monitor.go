// Package models - route_monitor.go defines the live API-traffic counters and
// their periodic immutable snapshots.
package models

import "time"

// RouteMonitor accumulates call and error-code counts for one (organization,
// path) pair. Counters are bumped with an atomic upsert-with-increment; the
// snapshot job copies them into RouteMonitorSnapshot rows for trend display.
type RouteMonitor struct {
	ID             string
	OrganizationID string
	Path           string
	NumCalls       int64
	ErrorCodes     map[string]int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RouteMonitorSnapshot is an append-only point-in-time copy of a RouteMonitor.
// Never mutated after creation.
type RouteMonitorSnapshot struct {
	ID             string
	OrganizationID string
	Path           string
	NumCalls       int64
	ErrorCodes     map[string]int64
	CreatedAt      time.Time
}
