// Package models - rule.go defines the Rule model for threshold alerting.
package models

import "time"

// Comparison types for rules. Despite the "crosses" naming these are level
// tests recomputed fresh on every evaluation tick; no previous-tick state is
// consulted.
const (
	ComparisonCrossesAbove = "crosses_above"
	ComparisonCrossesBelow = "crosses_below"
)

// Notification channels for triggered rules.
const (
	NotificationEmail = "email"
	NotificationSMS   = "sms"
)

// Rule is a user-defined alert comparing a folder's recent log volume against
// a fixed bound over a lookback window.
type Rule struct {
	ID                     string
	UserID                 string
	FolderID               string
	OrganizationID         string
	ComparisonType         string
	ComparisonValue        float64
	LookbackTimeInMins     int
	NotificationType       string
	LastTriggeredAt        *time.Time
	NumberOfTimesTriggered int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
