package router

import (
	"fmt"
	"strings"

	"github.com/sportfabrik/bonuscard/internal/cache"
	"github.com/sportfabrik/bonuscard/internal/config"
	adminhandlers "github.com/sportfabrik/bonuscard/internal/http/handlers/admin"
	receptionhandlers "github.com/sportfabrik/bonuscard/internal/http/handlers/reception"
	"github.com/sportfabrik/bonuscard/internal/logger"
	"github.com/sportfabrik/bonuscard/internal/models"
	"github.com/sportfabrik/bonuscard/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires middleware and all API routes.
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	receptionHandler := receptionhandlers.NewHandler(c)
	adminHandler := adminhandlers.NewHandler(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "bc"
	}
	deductRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:deduct", redisPrefix),
		WindowSeconds: cfg.Security.DeductRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.DeductRateLimit.MaxRequests,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// Reception endpoints, open to both roles.
		cards := apiV1.Group("/cards")
		cards.Use(StaffAuthMiddleware(c.StaffRepo))
		{
			cards.POST("", receptionHandler.IssueCard)
			cards.GET("/:id", receptionHandler.GetCard)
			cards.POST("/:id/deduct",
				RateLimitMiddleware(cache.Client(), deductRule, KeyByIP),
				receptionHandler.DeductVisit)
			cards.POST("/:id/rollback", RequireAdmin(), adminHandler.RollbackVisit)
			cards.POST("/:id/cancel", RequireAdmin(), adminHandler.CancelCard)
		}

		admin := apiV1.Group("/admin")
		admin.Use(StaffAuthMiddleware(c.StaffRepo), RequireAdmin())
		{
			admin.GET("/search", adminHandler.SearchCardBySerial)
			admin.GET("/email-receipts", adminHandler.ListReceipts)
			admin.GET("/email-receipts/stats", adminHandler.ReceiptStats)
			admin.GET("/email-receipts/:id", adminHandler.GetReceipt)
			admin.POST("/email-receipts/:id/retry", adminHandler.RetryReceipt)
			admin.GET("/reports/events", adminHandler.EventsReportCSV)
		}
	}

	r.GET("/health", healthHandler(c))

	return r
}

// healthHandler pings the database and, on request, the mail
// transport.
func healthHandler(c *provider.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		status := gin.H{"status": "ok"}
		httpCode := 200

		if models.DB == nil {
			status["status"] = "degraded"
			status["database"] = "not initialized"
			httpCode = 503
		} else if sqlDB, err := models.DB.DB(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			httpCode = 503
		} else if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			httpCode = 503
		} else {
			status["database"] = "ok"
		}

		if ctx.Query("check_mail") == "1" && c != nil && c.Mailer != nil {
			if err := c.Mailer.Verify(); err != nil {
				status["status"] = "degraded"
				status["mail"] = err.Error()
				httpCode = 503
			} else {
				status["mail"] = "ok"
			}
		}

		ctx.JSON(httpCode, status)
	}
}
