// Package api wires the HTTP surface together.
//
// Route grouping:
//   - /v1/logs (write, search) authenticates with an organization API key;
//     this is the surface log emitters talk to, so it also carries the
//     per-organization rate limiter and the route-monitor counters.
//   - /v1/console/* authenticates with a user JWT: log browsing, rules,
//     favorites, insights, and route-monitor trends.
//   - /healthz and /metrics are open; metrics normally bind a separate port.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/logfold/logfold/internal/config"
	"github.com/logfold/logfold/internal/db/repositories"
	"github.com/logfold/logfold/internal/jobs"
	"github.com/logfold/logfold/internal/logstore"
	"github.com/logfold/logfold/internal/middleware"
	"github.com/logfold/logfold/internal/notify"
	"github.com/logfold/logfold/internal/pathstore"
	"github.com/logfold/logfold/internal/rules"
	"github.com/logfold/logfold/internal/safego"
	"github.com/logfold/logfold/internal/stats"
	"github.com/logfold/logfold/internal/usage"
)

// BackgroundServices holds the background loops and resources that must be
// stopped during graceful shutdown, after the HTTP server has drained.
type BackgroundServices struct {
	ruleRunner   *jobs.RuleRunner
	cycleReset   *jobs.UsageCycleResetter
	purger       *jobs.RetentionPurger
	snapshotter  *jobs.RouteMonitorSnapshotter
	localLimiter *middleware.LocalLimiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	bg.ruleRunner.Stop()
	bg.cycleReset.Stop()
	bg.purger.Stop()
	bg.snapshotter.Stop()
	if bg.localLimiter != nil {
		bg.localLimiter.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter builds the Gin router, wires every repository and service, and
// starts the background jobs. rdb may be nil; the stats cache is then skipped
// and rate limiting falls back to the in-process limiter.
func NewRouter(ctx context.Context, cfg *config.Config, db *sql.DB, rdb redis.UniversalClient) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	folderRepo := repositories.NewFolderRepository(db)
	logRepo := repositories.NewLogRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	userRepo := repositories.NewUserRepository(db)

	sqlxDB := sqlx.NewDb(db, "postgres")
	monitorRepo := repositories.NewRouteMonitorRepository(sqlxDB)
	activityRepo := repositories.NewActivityRepository(sqlxDB)

	// Core services
	pathSvc := pathstore.New(folderRepo, logRepo)
	logSvc := logstore.New(logRepo, logstore.Options{
		MaxContentChars: cfg.Ingest.MaxContentChars,
		MaxContextChars: cfg.Ingest.MaxContextChars,
		SearchResultCap: cfg.Ingest.SearchResultCap,
	})

	var dispatcher notify.Dispatcher
	var mailer *notify.SMTPMailer
	if cfg.Notifications.Enabled {
		mailer = notify.NewSMTPMailer(cfg.Notifications.SMTP)
		dispatcher = notify.NewDispatcher(mailer, notify.NewSMSGateway(cfg.Notifications.SMS))
	}

	usageSvc := usage.New(orgRepo, logRepo, userRepo, mailerOrNil(mailer), usage.Policy{
		DefaultCycleDays:   cfg.Usage.DefaultCycleDays,
		SoftLimitThreshold: int64(cfg.Usage.SoftLimitThreshold),
		WarningRatio:       cfg.Usage.WarningRatio,
		WarningResendAfter: cfg.Usage.WarningResendAfter,
	})
	ruleEngine := rules.New(ruleRepo, logRepo, userRepo, dispatcher)

	var statsCache *stats.WindowCache
	if rdb != nil {
		statsCache = stats.NewWindowCache(rdb)
	}
	statsEngine := stats.New(logRepo, folderRepo, activityRepo, statsCache)

	// Rate limiter: shared through Redis when available, local otherwise.
	bg := &BackgroundServices{}
	var limiter middleware.Limiter
	if rdb != nil {
		limiter = middleware.NewRedisLimiter(rdb, cfg.Ingest.RatePerMinute)
	} else {
		local := middleware.NewLocalLimiter(cfg.Ingest.RatePerMinute)
		bg.localLimiter = local
		limiter = local
	}

	// Health and metrics
	router.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Ingest surface: organization API keys.
	ingest := router.Group("/v1")
	ingest.Use(middleware.APIKeyAuth(orgRepo, cfg.Auth.APIKeyPrefix))
	ingest.Use(middleware.RateLimit(limiter))
	ingest.Use(routeMonitor(monitorRepo))
	{
		ingest.POST("/logs", IngestHandler(pathSvc, logSvc, usageSvc))
		ingest.GET("/logs/search", SearchHandler(logSvc, folderRepo, activityRepo))
	}

	// Console surface: user JWTs.
	console := router.Group("/v1/console")
	console.Use(middleware.JWTAuth())
	{
		console.GET("/logs", ListLogsHandler(logSvc, folderRepo, activityRepo))
		console.GET("/logs/search", SearchHandler(logSvc, folderRepo, activityRepo))
		console.DELETE("/logs/:id", DeleteLogHandler(logSvc))
		console.DELETE("/folders/:id", DeleteFolderHandler(folderRepo))

		console.POST("/rules", CreateRuleHandler(ruleEngine))
		console.GET("/rules", ListRulesHandler(ruleEngine))
		console.DELETE("/rules/:id", DeleteRuleHandler(ruleEngine))

		console.GET("/folders/:id/frequencies", FrequenciesHandler(statsEngine, activityRepo, folderRepo))
		console.GET("/folders/:id/percent-change", PercentChangeHandler(statsEngine, folderRepo))
		console.GET("/folders/:id/histograms", HistogramsHandler(statsEngine, activityRepo, folderRepo))
		console.GET("/insights", InsightsHandler(statsEngine))

		console.GET("/favorites", ListFavoritesHandler(activityRepo))
		console.POST("/favorites", AddFavoriteHandler(activityRepo))
		console.DELETE("/favorites", RemoveFavoriteHandler(activityRepo))

		console.GET("/route-monitors", RouteMonitorsHandler(monitorRepo))
		console.GET("/route-monitors/trend", RouteMonitorTrendHandler(monitorRepo))
	}

	// Background jobs
	bg.ruleRunner = jobs.NewRuleRunner(ruleEngine, orgRepo, cfg.Jobs.RuleEvalInterval)
	bg.cycleReset = jobs.NewUsageCycleResetter(usageSvc, cfg.Jobs.UsageResetInterval)
	bg.purger = jobs.NewRetentionPurger(usageSvc, cfg.Jobs.RetentionInterval)
	bg.snapshotter = jobs.NewRouteMonitorSnapshotter(monitorRepo, cfg.Jobs.RouteSnapshotInterval)

	safego.Go("rule runner", func() { bg.ruleRunner.Start(ctx) })
	safego.Go("usage cycle resetter", func() { bg.cycleReset.Start(ctx) })
	safego.Go("retention purger", func() { bg.purger.Start(ctx) })
	safego.Go("route monitor snapshotter", func() { bg.snapshotter.Start(ctx) })

	return router, bg
}

// routeMonitor bumps the per-(organization, path) traffic counters after each
// ingest request, tagging 4xx/5xx responses with their status code.
func routeMonitor(monitors *repositories.RouteMonitorRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		orgID := c.GetString(middleware.OrganizationIDKey)
		if orgID == "" {
			return
		}

		path := c.FullPath()
		if path == "" {
			return
		}

		errorCode := ""
		if status := c.Writer.Status(); status >= 400 {
			errorCode = strconv.Itoa(status)
		}

		if err := monitors.RecordCall(c.Request.Context(), orgID, path, errorCode); err != nil {
			slog.Warn("route monitor record failed", "path", path, "error", err)
		}
	}
}

// mailerOrNil keeps the usage service's EmailSender nil when notifications are
// off, so the nil interface check inside the service works as intended.
func mailerOrNil(m *notify.SMTPMailer) notify.EmailSender {
	if m == nil {
		return nil
	}
	return m
}
