// Package models - log.go defines the Log model, the append-only record at the
// heart of the system.
package models

import "time"

// Log is one ingested record. Immutable once created except for deletion.
// Content is bounded at ingest time; AdditionalContext is a bounded key/value
// map stored as JSONB.
type Log struct {
	ID                string
	OrganizationID    string
	FolderID          string
	Content           string
	ReferenceID       *string
	ExternalLink      *string
	AdditionalContext map[string]any
	CreatedAt         time.Time
}
