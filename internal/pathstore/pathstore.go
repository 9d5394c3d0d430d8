// Package pathstore resolves slash-delimited channel paths into chains of
// folder records, creating missing segments lazily.
//
// The namespace obeys leaf exclusivity: a folder holds logs or subfolders,
// never both. Resolution enforces the half of the invariant that can be
// violated by growing the tree (turning a leaf-with-logs into a branch); the
// other half holds because logs are only ever written to the leaf a
// resolution returns.
package pathstore

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/db/repositories"
)

// FolderStore is the slice of the folder repository the path store needs.
type FolderStore interface {
	FindByParentAndName(ctx context.Context, orgID string, parentFolderID *string, name string) (*models.Folder, error)
	Create(ctx context.Context, folder *models.Folder) error
}

// LogChecker reports whether a folder directly owns log records.
type LogChecker interface {
	HasLogs(ctx context.Context, folderID string) (bool, error)
}

// Service walks and grows the folder namespace for one deployment.
type Service struct {
	folders FolderStore
	logs    LogChecker
}

// New creates a path store service.
func New(folders FolderStore, logs LogChecker) *Service {
	return &Service{folders: folders, logs: logs}
}

// ValidatePath checks the shape of a channel path: it must start with a slash,
// contain no whitespace, and carry more than one character after the leading
// slash.
func ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with '/': %w", apperrors.ErrValidation)
	}
	for _, r := range path {
		if unicode.IsSpace(r) {
			return fmt.Errorf("path must not contain whitespace: %w", apperrors.ErrValidation)
		}
	}
	if len(path[1:]) <= 1 {
		return fmt.Errorf("path is too short: %w", apperrors.ErrValidation)
	}
	return nil
}

// ResolveOrCreateLeaf maps a path to its leaf folder id, creating any missing
// segments along the way. Resolving an existing path is idempotent: the same
// folder id comes back every time.
//
// For every non-final segment the resolved folder must not directly own logs;
// otherwise the walk stops with a conflict error, because descending would
// turn a leaf-with-logs into a branch.
func (s *Service) ResolveOrCreateLeaf(ctx context.Context, orgID, path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	segments := splitPath(path)
	if len(segments) == 0 {
		return "", fmt.Errorf("path has no segments: %w", apperrors.ErrValidation)
	}

	var parentID *string
	fullPath := ""
	for i, name := range segments {
		fullPath += "/" + name

		folder, err := s.resolveSegment(ctx, orgID, parentID, name, fullPath)
		if err != nil {
			return "", err
		}

		// Intermediate folders must be branches, not leaves holding logs.
		if i < len(segments)-1 {
			hasLogs, err := s.logs.HasLogs(ctx, folder.ID)
			if err != nil {
				return "", err
			}
			if hasLogs {
				return "", fmt.Errorf("folder %q already contains logs and cannot hold subfolders: %w",
					folder.FullPath, apperrors.ErrConflict)
			}
		}

		parentID = &folder.ID
	}

	return *parentID, nil
}

// resolveSegment finds or creates one folder keyed by (org, parent, name).
// Two callers racing to create the same segment both succeed: the loser of
// the insert race hits the unique constraint and fetches the winner's row.
func (s *Service) resolveSegment(ctx context.Context, orgID string, parentID *string, name, fullPath string) (*models.Folder, error) {
	folder, err := s.folders.FindByParentAndName(ctx, orgID, parentID, name)
	if err != nil {
		return nil, err
	}
	if folder != nil {
		return folder, nil
	}

	folder = &models.Folder{
		OrganizationID: orgID,
		ParentFolderID: parentID,
		Name:           name,
		FullPath:       fullPath,
	}
	err = s.folders.Create(ctx, folder)
	if err == nil {
		return folder, nil
	}
	if !repositories.IsUniqueViolation(err) {
		return nil, err
	}

	// Lost the creation race; the row exists now.
	folder, err = s.folders.FindByParentAndName(ctx, orgID, parentID, name)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, fmt.Errorf("folder %q vanished after creation conflict: %w", fullPath, apperrors.ErrNotFound)
	}
	return folder, nil
}

// splitPath splits on '/' and discards empty segments, so "/a//b/" and "/a/b"
// resolve identically.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
