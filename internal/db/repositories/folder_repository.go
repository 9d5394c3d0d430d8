// folder_repository.go implements FolderRepository, providing database queries
// for the hierarchical folder namespace: sibling lookup, guarded creation, and
// cascading deletion.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/logfold/logfold/internal/db/models"
)

// FolderRepository handles database operations for folders
type FolderRepository struct {
	db *sql.DB
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

const folderColumns = `id, organization_id, parent_folder_id, name, full_path, created_at, updated_at`

func scanFolder(row interface{ Scan(...any) error }) (*models.Folder, error) {
	folder := &models.Folder{}
	err := row.Scan(
		&folder.ID,
		&folder.OrganizationID,
		&folder.ParentFolderID,
		&folder.Name,
		&folder.FullPath,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// GetByID retrieves a folder by ID
func (r *FolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE id = $1
	`

	folder, err := scanFolder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return folder, nil
}

// FindByParentAndName retrieves the folder with the given name directly under
// parentFolderID (nil for the root level) in one organization.
func (r *FolderRepository) FindByParentAndName(ctx context.Context, orgID string, parentFolderID *string, name string) (*models.Folder, error) {
	var row *sql.Row
	if parentFolderID == nil {
		query := `
			SELECT ` + folderColumns + `
			FROM folders
			WHERE organization_id = $1 AND parent_folder_id IS NULL AND name = $2
		`
		row = r.db.QueryRowContext(ctx, query, orgID, name)
	} else {
		query := `
			SELECT ` + folderColumns + `
			FROM folders
			WHERE organization_id = $1 AND parent_folder_id = $2 AND name = $3
		`
		row = r.db.QueryRowContext(ctx, query, orgID, *parentFolderID, name)
	}

	folder, err := scanFolder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find folder: %w", err)
	}

	return folder, nil
}

// GetByFullPath retrieves a folder by its full slash-delimited path.
func (r *FolderRepository) GetByFullPath(ctx context.Context, orgID, fullPath string) (*models.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE organization_id = $1 AND full_path = $2
	`

	folder, err := scanFolder(r.db.QueryRowContext(ctx, query, orgID, fullPath))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get folder by path: %w", err)
	}

	return folder, nil
}

// Create inserts a new folder. The unique index on (organization_id,
// parent_folder_id, name) makes concurrent creation of the same segment fail
// with a unique violation; callers should detect that with IsUniqueViolation
// and re-fetch instead of treating it as fatal.
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := `
		INSERT INTO folders (organization_id, parent_folder_id, name, full_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		folder.OrganizationID,
		folder.ParentFolderID,
		folder.Name,
		folder.FullPath,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			return err // caller retries with a fetch
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// HasChildren reports whether the folder has at least one subfolder.
func (r *FolderRepository) HasChildren(ctx context.Context, folderID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM folders WHERE parent_folder_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, folderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check folder children: %w", err)
	}
	return exists, nil
}

// ListByOrganization retrieves every folder in an organization ordered by path.
func (r *FolderRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders
		WHERE organization_id = $1
		ORDER BY full_path
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]*models.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// ListWithLogs retrieves every folder in an organization that has at least one
// log record. Used by the insights computation so empty branches are skipped.
func (r *FolderRepository) ListWithLogs(ctx context.Context, orgID string) ([]*models.Folder, error) {
	query := `
		SELECT ` + folderColumns + `
		FROM folders f
		WHERE f.organization_id = $1
		  AND EXISTS (SELECT 1 FROM logs l WHERE l.folder_id = f.id)
		ORDER BY f.full_path
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders with logs: %w", err)
	}
	defer rows.Close()

	folders := make([]*models.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// ResolveIDsByFullPaths maps full paths to folder ids within one organization.
// Paths with no matching folder are silently skipped; favorites may reference
// folders that were deleted since being pinned.
func (r *FolderRepository) ResolveIDsByFullPaths(ctx context.Context, orgID string, fullPaths []string) ([]string, error) {
	if len(fullPaths) == 0 {
		return nil, nil
	}

	query := `
		SELECT id
		FROM folders
		WHERE organization_id = $1 AND full_path = ANY($2)
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, pq.Array(fullPaths))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder paths: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, len(fullPaths))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan folder id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Delete removes a folder. Descendant folders and their logs go with it via
// the ON DELETE CASCADE constraints.
func (r *FolderRepository) Delete(ctx context.Context, orgID, folderID string) (bool, error) {
	query := `DELETE FROM folders WHERE id = $1 AND organization_id = $2`
	result, err := r.db.ExecContext(ctx, query, folderID, orgID)
	if err != nil {
		return false, fmt.Errorf("failed to delete folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}
