// Package api assembles the HTTP surface of serve mode.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pydverify/backend/internal/api/handlers"
	"github.com/pydverify/backend/internal/assessment"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/metrics"
	"github.com/pydverify/backend/internal/middleware/ratelimit"
	"github.com/pydverify/backend/internal/middleware/security"
	"github.com/pydverify/backend/internal/middleware/validation"
	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/pkg/logger"
)

type Deps struct {
	Engine     *pipeline.Engine
	Store      *knowledge.Store
	Updater    handlers.KnowledgeUpdater
	Aggregator *assessment.Aggregator
	// Runs is optional.
	Runs        handlers.RunLister
	RateLimiter *ratelimit.RateLimiter

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BodyLimit      int
	AllowedOrigins []string
	IsDevelopment  bool
	AccessLog      bool
}

func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           d.ReadTimeout,
		WriteTimeout:          d.WriteTimeout,
		BodyLimit:             d.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: d.AllowedOrigins,
		IsDevelopment:  d.IsDevelopment,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		status := d.Store.Status()
		return c.JSON(fiber.Map{
			"status":          "healthy",
			"time":            time.Now().Unix(),
			"current_version": status.CurrentVersion,
			"entries_count":   status.EntriesCount,
		})
	})

	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware())
	}
	api.Use(validation.Middleware(validation.Config{Logger: logger.Named("http")}))

	verifyHandler := handlers.NewVerifyHandler(d.Engine)
	knowledgeHandler := handlers.NewKnowledgeHandler(d.Store, d.Updater)
	assessmentHandler := handlers.NewAssessmentHandler(d.Aggregator, d.Runs)

	api.Post("/verify", verifyHandler.Verify)
	api.Post("/assess", verifyHandler.Assess)

	api.Get("/knowledge", knowledgeHandler.GetStatus)
	api.Post("/knowledge/update", knowledgeHandler.Update)

	api.Get("/assessments", assessmentHandler.GetHistory)
	api.Post("/assessments", assessmentHandler.RunBatch)

	return app
}
