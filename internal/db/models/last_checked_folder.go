// Package models - last_checked_folder.go defines the folder-visit ledger.
package models

import "time"

// LastCheckedFolder is one row per check event (an append-only activity
// ledger, not a single mutable pointer). The insights service ranks a user's
// most-visited folders by counting these rows within a time window.
type LastCheckedFolder struct {
	ID        string
	UserID    string
	FullPath  string
	CreatedAt time.Time
}

// FavoriteFolder marks a folder path a user has pinned. Favorites drive the
// "favorites mode" filter in search and log listing.
type FavoriteFolder struct {
	ID        string
	UserID    string
	FullPath  string
	CreatedAt time.Time
}
