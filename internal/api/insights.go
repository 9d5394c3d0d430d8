// insights.go implements the console analytics surface: frequency series,
// percentage change, histograms, the day-over-day digest, favorites, and
// route-monitor trends. Visiting a folder's stats records a check event that
// later feeds the digest's "frequently visited" ranking.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/db/repositories"
	"github.com/logfold/logfold/internal/middleware"
	"github.com/logfold/logfold/internal/stats"
)

// FrequenciesHandler handles GET /v1/folders/:id/frequencies.
func FrequenciesHandler(engine *stats.Engine, activity *repositories.ActivityRepository, folders *repositories.FolderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		folder, ok := authorizeFolder(c, folders, c.Param("id"))
		if !ok {
			return
		}
		interval, _ := strconv.Atoi(c.DefaultQuery("intervalMinutes", "60"))
		steps, _ := strconv.Atoi(c.DefaultQuery("stepsBack", "24"))
		ignoreOldest := c.Query("ignoreOldest") == "true"

		counts, err := engine.GetLogFrequenciesByInterval(c.Request.Context(), folder.ID, interval, steps, ignoreOldest)
		if err != nil {
			respondError(c, err)
			return
		}

		recordFolderCheck(c, activity, folder)
		c.JSON(http.StatusOK, gin.H{"counts": counts})
	}
}

// PercentChangeHandler handles GET /v1/folders/:id/percent-change.
func PercentChangeHandler(engine *stats.Engine, folders *repositories.FolderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		folder, ok := authorizeFolder(c, folders, c.Param("id"))
		if !ok {
			return
		}
		interval, _ := strconv.Atoi(c.DefaultQuery("intervalMinutes", "60"))
		steps, _ := strconv.Atoi(c.DefaultQuery("stepsBack", "24"))

		change, err := engine.GetPercentChangeInFrequencyOfMostRecentLogs(c.Request.Context(), folder.ID, interval, steps)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"percentChange": change})
	}
}

// HistogramsHandler handles GET /v1/folders/:id/histograms.
func HistogramsHandler(engine *stats.Engine, activity *repositories.ActivityRepository, folders *repositories.FolderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		folder, ok := authorizeFolder(c, folders, c.Param("id"))
		if !ok {
			return
		}
		byReference := c.Query("groupBy") == "referenceId"
		lastXDays, _ := strconv.Atoi(c.DefaultQuery("lastXDays", "1"))

		histograms, err := engine.GetHistogramsForFolder(c.Request.Context(), folder.ID, byReference, lastXDays)
		if err != nil {
			respondError(c, err)
			return
		}

		recordFolderCheck(c, activity, folder)
		c.JSON(http.StatusOK, gin.H{"histograms": histograms})
	}
}

// authorizeFolder loads the folder named in the route and confirms it belongs
// to the caller's organization. An unknown id is a 404; a real folder owned by
// another organization is a 403, so stats never leak across tenants. When the
// check fails the response has already been written.
func authorizeFolder(c *gin.Context, folders *repositories.FolderRepository, folderID string) (*models.Folder, bool) {
	folder, err := folders.GetByID(c.Request.Context(), folderID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if folder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return nil, false
	}
	if folder.OrganizationID != c.GetString(middleware.OrganizationIDKey) {
		respondError(c, fmt.Errorf("folder %s belongs to another organization: %w", folderID, apperrors.ErrAuth))
		return nil, false
	}
	return folder, true
}

// InsightsHandler handles GET /v1/insights?timezone=Europe/Berlin.
func InsightsHandler(engine *stats.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)
		userID := c.GetString(middleware.UserIDKey)

		loc := time.UTC
		if tz := c.Query("timezone"); tz != "" {
			parsed, err := time.LoadLocation(tz)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone"})
				return
			}
			loc = parsed
		}

		insights, err := engine.GetInsights(c.Request.Context(), orgID, userID, loc)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, insights)
	}
}

type favoriteRequest struct {
	FullPath string `json:"fullPath" binding:"required"`
}

// AddFavoriteHandler handles POST /v1/favorites.
func AddFavoriteHandler(activity *repositories.ActivityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		userID := c.GetString(middleware.UserIDKey)
		if err := activity.AddFavorite(c.Request.Context(), userID, req.FullPath); err != nil {
			if repositories.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Folder is already a favorite"})
				return
			}
			respondError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	}
}

// RemoveFavoriteHandler handles DELETE /v1/favorites.
func RemoveFavoriteHandler(activity *repositories.ActivityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req favoriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		userID := c.GetString(middleware.UserIDKey)
		removed, err := activity.RemoveFavorite(c.Request.Context(), userID, req.FullPath)
		if err != nil {
			respondError(c, err)
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "Favorite not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListFavoritesHandler handles GET /v1/favorites.
func ListFavoritesHandler(activity *repositories.ActivityRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)

		paths, err := activity.ListFavoritePaths(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"favorites": paths})
	}
}

// RouteMonitorsHandler handles GET /v1/route-monitors.
func RouteMonitorsHandler(monitors *repositories.RouteMonitorRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)

		list, err := monitors.ListByOrganization(c.Request.Context(), orgID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"monitors": list})
	}
}

// RouteMonitorTrendHandler handles GET /v1/route-monitors/trend?path=...
func RouteMonitorTrendHandler(monitors *repositories.RouteMonitorRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.OrganizationIDKey)
		path := c.Query("path")
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'path' is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "48"))

		snapshots, err := monitors.ListSnapshots(c.Request.Context(), orgID, path, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
	}
}

// recordFolderCheck appends a visit event for the digest ranking. Failures are
// swallowed; losing one ranking event never fails a stats read.
func recordFolderCheck(c *gin.Context, activity *repositories.ActivityRepository, folder *models.Folder) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return
	}
	_ = activity.RecordFolderCheck(c.Request.Context(), userID, folder.FullPath)
}
