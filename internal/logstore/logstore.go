// Package logstore owns the append-only log records: bounded ingestion,
// query-grammar search, paginated listing, and the window counts the rule and
// stats engines consume.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/models"
)

// TruncationMarker is appended to content cut at the length ceiling.
const TruncationMarker = "..."

// ContextTooLargeNote replaces an additional-context map whose serialized
// form exceeds the configured ceiling.
const ContextTooLargeNote = "additional context too large to record"

// Store is the slice of the log repository the service needs.
type Store interface {
	Create(ctx context.Context, log *models.Log) error
	GetByID(ctx context.Context, id string) (*models.Log, error)
	Delete(ctx context.Context, id string) error
	CountInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) (int, error)
	ListPaginated(ctx context.Context, folderIDs []string, start, limit int, newerBound, olderBound *time.Time) ([]*models.Log, error)
	SearchByReferenceID(ctx context.Context, orgID, referenceID string, folderIDs []string, limit int) ([]*models.Log, error)
	SearchByContent(ctx context.Context, orgID, substring string, folderIDs []string, limit int) ([]*models.Log, error)
	SearchByContextValue(ctx context.Context, orgID, key string, value any, folderIDs []string, limit int) ([]*models.Log, error)
}

// Options bound individual records and result sets.
type Options struct {
	// MaxContentChars is the content ceiling; longer content is truncated
	// with TruncationMarker appended.
	MaxContentChars int
	// MaxContextChars is the serialized-size ceiling for additional context.
	MaxContextChars int
	// SearchResultCap bounds a single search's result set.
	SearchResultCap int
}

// Service implements the log store operations.
type Service struct {
	store Store
	opts  Options
}

// New creates a log store service.
func New(store Store, opts Options) *Service {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 1500
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 2200
	}
	if opts.SearchResultCap <= 0 {
		opts.SearchResultCap = 300
	}
	return &Service{store: store, opts: opts}
}

// CreateLog persists one record after applying the ingestion bounds: content
// beyond MaxContentChars is truncated with a trailing marker, and a context
// map whose JSON form exceeds MaxContextChars is replaced with a placeholder
// note rather than stored.
func (s *Service) CreateLog(ctx context.Context, orgID, folderID, content string, referenceID, externalLink *string, additionalContext map[string]any) (*models.Log, error) {
	if len(content) > s.opts.MaxContentChars {
		// Back the cut off to a rune boundary; a split multibyte rune would be
		// invalid UTF-8 and Postgres rejects it.
		cut := s.opts.MaxContentChars
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + TruncationMarker
	}

	if additionalContext != nil {
		serialized, err := json.Marshal(additionalContext)
		if err != nil || len(serialized) > s.opts.MaxContextChars {
			additionalContext = map[string]any{"note": ContextTooLargeNote}
		}
	}

	log := &models.Log{
		OrganizationID:    orgID,
		FolderID:          folderID,
		Content:           content,
		ReferenceID:       referenceID,
		ExternalLink:      externalLink,
		AdditionalContext: additionalContext,
	}
	if err := s.store.Create(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// Search runs one query in exactly one of three modes, newest first, capped at
// SearchResultCap:
//
//   - "id:<value>"              exact reference-id match
//   - "context.<key>=<value>"   exact match on one additional-context entry
//   - anything else             case-insensitive substring match on content
//
// A context.-prefixed query whose key is empty or whose value fails to parse
// falls back to substring search rather than erroring, so a literal message
// that happens to start with "context." still finds itself.
//
// Scope: folderID narrows to one folder; otherwise favoriteFolderIDs (already
// resolved to ids by the caller) narrows to the pinned set; with neither, the
// whole organization is searched.
func (s *Service) Search(ctx context.Context, orgID, query string, folderID *string, favoriteFolderIDs []string) ([]*models.Log, error) {
	scope := searchScope(folderID, favoriteFolderIDs)

	if referenceID, ok := parseReferenceQuery(query); ok {
		return s.store.SearchByReferenceID(ctx, orgID, referenceID, scope, s.opts.SearchResultCap)
	}

	if key, value, ok := parseContextQuery(query); ok {
		return s.store.SearchByContextValue(ctx, orgID, key, value, scope, s.opts.SearchResultCap)
	}

	return s.store.SearchByContent(ctx, orgID, query, scope, s.opts.SearchResultCap)
}

// GetLogs lists records newest-first with an offset/limit window and optional
// date bounds. Exactly one of folderID or favorites mode must govern the
// filter; asking for both or neither is a validation error.
func (s *Service) GetLogs(ctx context.Context, folderID *string, favoriteFolderIDs []string, start, limit int, newerBound, olderBound *time.Time) ([]*models.Log, error) {
	if (folderID == nil) == (favoriteFolderIDs == nil) {
		return nil, fmt.Errorf("exactly one of folder or favorites filter is required: %w", apperrors.ErrValidation)
	}
	if start < 0 || limit <= 0 {
		return nil, fmt.Errorf("pagination bounds out of range: %w", apperrors.ErrValidation)
	}

	scope := favoriteFolderIDs
	if folderID != nil {
		scope = []string{*folderID}
	}
	if len(scope) == 0 {
		return []*models.Log{}, nil
	}

	return s.store.ListPaginated(ctx, scope, start, limit, newerBound, olderBound)
}

// DeleteLog removes one record after checking tenancy: deleting a log that
// belongs to another organization fails with an auth error, not a not-found,
// so probing for foreign log ids is indistinguishable from being denied.
func (s *Service) DeleteLog(ctx context.Context, logID, orgID string) error {
	log, err := s.store.GetByID(ctx, logID)
	if err != nil {
		return err
	}
	if log == nil {
		return fmt.Errorf("log %s: %w", logID, apperrors.ErrNotFound)
	}
	if log.OrganizationID != orgID {
		return fmt.Errorf("log %s belongs to another organization: %w", logID, apperrors.ErrAuth)
	}
	return s.store.Delete(ctx, logID)
}

// CountInWindow returns the exact number of logs in a folder created within
// [floor, ceiling).
func (s *Service) CountInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) (int, error) {
	return s.store.CountInWindow(ctx, folderID, floor, ceiling)
}

func searchScope(folderID *string, favoriteFolderIDs []string) []string {
	if folderID != nil {
		return []string{*folderID}
	}
	if favoriteFolderIDs != nil {
		return favoriteFolderIDs
	}
	return nil
}
