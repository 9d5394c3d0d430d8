// Package models - organization.go defines the Organization model: a tenant
// namespace carrying the billing-cycle counters the usage service mutates.
package models

import "time"

// Organization represents a tenant and its billing facet.
//
// NumLogsSentInPeriod increases monotonically within a cycle and is zeroed
// exactly at cycle rollover. CycleStarts is always before CycleEnds; both are
// nil until the first cycle is opened.
type Organization struct {
	ID                   string
	Name                 string
	APIKeyHash           string // bcrypt hash of the ingest API key
	NumLogsSentInPeriod  int64
	LogLimitForPeriod    int64
	CycleStarts          *time.Time
	CycleEnds            *time.Time
	LogRetentionInDays   int
	SentLastUsageEmailAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
