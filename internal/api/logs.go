// logs.go implements the ingest surface: writing, searching, listing, and
// deleting log records. Every handler here is authenticated with an
// organization API key; the write path is the only one that touches quota.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/repositories"
	"github.com/logfold/logfold/internal/logstore"
	"github.com/logfold/logfold/internal/middleware"
	"github.com/logfold/logfold/internal/pathstore"
	"github.com/logfold/logfold/internal/telemetry"
	"github.com/logfold/logfold/internal/usage"
)

type ingestRequest struct {
	FolderPath        string         `json:"folderPath" binding:"required"`
	Content           string         `json:"content" binding:"required"`
	ReferenceID       *string        `json:"referenceId"`
	ExternalLink      *string        `json:"externalLink"`
	AdditionalContext map[string]any `json:"additionalContext"`
}

// IngestHandler handles POST /v1/logs: resolve the folder path, gate on the
// organization's quota, persist, then charge the cycle counter. The charge
// happens after the write so a failed insert is never billed.
func IngestHandler(paths *pathstore.Service, logs *logstore.Service, usageSvc *usage.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		org, ok := middleware.OrganizationFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if !usageSvc.ShouldAllowAnotherLog(org) {
			telemetry.LogsRejectedTotal.WithLabelValues(org.ID).Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Log limit reached for the current billing cycle",
			})
			return
		}

		folderID, err := paths.ResolveOrCreateLeaf(c.Request.Context(), org.ID, req.FolderPath)
		if err != nil {
			respondError(c, err)
			return
		}

		record, err := logs.CreateLog(c.Request.Context(), org.ID, folderID,
			req.Content, req.ReferenceID, req.ExternalLink, req.AdditionalContext)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := usageSvc.RecordNewLog(c.Request.Context(), org.ID); err != nil {
			// The record exists; an uncharged log is better than a failed write.
			respondError(c, err)
			return
		}
		telemetry.LogsIngestedTotal.WithLabelValues(org.ID).Inc()

		c.JSON(http.StatusCreated, gin.H{
			"id":        record.ID,
			"folderId":  record.FolderID,
			"createdAt": record.CreatedAt,
		})
	}
}

// SearchHandler handles GET /v1/logs/search?q=...&folderId=...&favorites=true.
// Favorites mode resolves the caller's pinned paths to folder ids before the
// search runs.
func SearchHandler(logs *logstore.Service, folders *repositories.FolderRepository, activity *repositories.ActivityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
			return
		}

		var folderID *string
		if id := c.Query("folderId"); id != "" {
			folderID = &id
		}

		var favoriteIDs []string
		if folderID == nil && c.Query("favorites") == "true" {
			userID := c.GetString(middleware.UserIDKey)
			ids, err := resolveFavoriteIDs(c, folders, activity, orgID, userID)
			if err != nil {
				respondError(c, err)
				return
			}
			// An empty set must stay a favorites-scoped (empty) search, not
			// widen to the whole organization.
			if ids == nil {
				ids = []string{}
			}
			favoriteIDs = ids
		}

		results, err := logs.Search(c.Request.Context(), orgID, query, folderID, favoriteIDs)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": results, "count": len(results)})
	}
}

// ListLogsHandler handles GET /v1/logs with offset/limit pagination, scoped to
// one folder or to the caller's favorites, with optional date bounds.
func ListLogsHandler(logs *logstore.Service, folders *repositories.FolderRepository, activity *repositories.ActivityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)

		var folderID *string
		if id := c.Query("folderId"); id != "" {
			folderID = &id
		}

		var favoriteIDs []string
		if folderID == nil && c.Query("favorites") == "true" {
			userID := c.GetString(middleware.UserIDKey)
			ids, err := resolveFavoriteIDs(c, folders, activity, orgID, userID)
			if err != nil {
				respondError(c, err)
				return
			}
			if ids == nil {
				ids = []string{}
			}
			favoriteIDs = ids
		}

		start, _ := strconv.Atoi(c.DefaultQuery("start", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		newerBound, err := parseTimeQuery(c, "newerThan")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid newerThan timestamp"})
			return
		}
		olderBound, err := parseTimeQuery(c, "olderThan")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid olderThan timestamp"})
			return
		}

		results, err := logs.GetLogs(c.Request.Context(), folderID, favoriteIDs, start, limit, newerBound, olderBound)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": results, "count": len(results)})
	}
}

// DeleteLogHandler handles DELETE /v1/logs/:id.
func DeleteLogHandler(logs *logstore.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)

		if err := logs.DeleteLog(c.Request.Context(), c.Param("id"), orgID); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DeleteFolderHandler handles DELETE /v1/folders/:id: the folder, its
// descendants, and all their logs go together.
func DeleteFolderHandler(folders *repositories.FolderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)

		deleted, err := folders.Delete(c.Request.Context(), orgID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func resolveFavoriteIDs(c *gin.Context, folders *repositories.FolderRepository, activity *repositories.ActivityRepository, orgID, userID string) ([]string, error) {
	paths, err := activity.ListFavoritePaths(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	return folders.ResolveIDsByFullPaths(c.Request.Context(), orgID, paths)
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// respondError maps the typed error kinds onto HTTP statuses; anything
// unclassified is a 500 with a generic body so internals never leak.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrAuth):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
