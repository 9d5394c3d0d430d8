// Package models - folder.go defines the Folder model representing one node in
// a tenant's slash-delimited channel tree.
package models

import "time"

// Folder is a node in an organization's hierarchical namespace. FullPath is
// the /-joined concatenation of ancestor names. A folder holds either logs or
// subfolders, never both; the path store enforces that invariant on creation.
type Folder struct {
	ID             string
	OrganizationID string
	ParentFolderID *string // nil for root-level folders
	Name           string
	FullPath       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
