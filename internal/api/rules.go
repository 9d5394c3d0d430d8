// rules.go implements the console's alert-rule CRUD. All handlers require a
// user session; a rule always belongs to the user that created it.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/middleware"
	"github.com/logfold/logfold/internal/rules"
)

type createRuleRequest struct {
	FolderID           string  `json:"folderId" binding:"required"`
	ComparisonType     string  `json:"comparisonType" binding:"required"`
	ComparisonValue    float64 `json:"comparisonValue"`
	LookbackTimeInMins int     `json:"lookbackTimeInMins" binding:"required"`
	NotificationType   string  `json:"notificationType" binding:"required"`
}

// CreateRuleHandler handles POST /v1/rules.
func CreateRuleHandler(engine *rules.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		rule := &models.Rule{
			UserID:             c.GetString(middleware.UserIDKey),
			OrganizationID:     c.GetString(middleware.OrganizationIDKey),
			FolderID:           req.FolderID,
			ComparisonType:     req.ComparisonType,
			ComparisonValue:    req.ComparisonValue,
			LookbackTimeInMins: req.LookbackTimeInMins,
			NotificationType:   req.NotificationType,
		}

		if err := engine.CreateRule(c.Request.Context(), rule); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, rule)
	}
}

// ListRulesHandler handles GET /v1/rules.
func ListRulesHandler(engine *rules.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)

		list, err := engine.ListRulesForUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"rules": list, "count": len(list)})
	}
}

// DeleteRuleHandler handles DELETE /v1/rules/:id.
func DeleteRuleHandler(engine *rules.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey)

		if err := engine.DeleteRule(c.Request.Context(), c.Param("id"), userID); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
