package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/config"
	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Initialize Logger
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))

	if len(os.Args) > 1 && os.Args[1] == "smtp-check" {
		os.Exit(runSMTPCheck(os.Args[2:]))
	}

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Failed to load configuration: %v", err)
	}

	logx.Infof("🚀 Starting bulkmail (mode: %s)...", cfg.Server.Mode)

	// 3. Initialize Dependency Container
	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 4. HTTP API
	if cfg.Server.Mode == config.ModeAll || cfg.Server.Mode == config.ModeAPI {
		app := newApp(container)
		g.Go(func() error {
			logx.Infof("🚀 Server listening on port %s", cfg.Server.Port)
			return app.Listen(":" + cfg.Server.Port)
		})
		g.Go(func() error {
			<-gctx.Done()
			logx.Info("🛑 Shutting down HTTP server...")
			return app.ShutdownWithTimeout(30 * time.Second)
		})
	}

	// 5. Delivery workers
	if cfg.Server.Mode == config.ModeAll || cfg.Server.Mode == config.ModeWorker {
		g.Go(func() error {
			return container.Mailing.Jobs.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logx.Errorf("Exited with error: %v", err)
		return
	}
	logx.Info("✅ Server exited successfully")
}

func newApp(container *Container) *fiber.App {
	cfg := container.Config

	app := fiber.New(fiber.Config{
		AppName:               "bulkmail",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler(cfg.Server.Debug),
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())

	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(kernel.WithRequestID(c.UserContext(), c.GetRespHeader("X-Request-ID")))
		return c.Next()
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID, X-Session-ID",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "X-Request-ID, Content-Disposition",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${respHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthCheckHandler(container))
	container.Mailing.Handlers.RegisterRoutes(app)

	app.Use(notFoundHandler)

	logx.Info("📋 Routes: POST /recipients, POST /send-email, GET /status, GET /log-download, GET /health")
	return app
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "bulkmail",
		}

		if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
			queues := fiber.Map{}
			for _, q := range container.Config.Jobx.Queues {
				if n, err := container.Mailing.Queue.QueueLength(c.UserContext(), q); err == nil {
					queues[q] = n
				}
			}
			health["queued"] = queues
		}

		if container.DB != nil {
			if err := container.DB.PingContext(c.UserContext()); err != nil {
				health["db"] = "unhealthy"
				health["db_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["db"] = "healthy"
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.GetRespHeader("X-Request-ID"),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler renders errors as the errx payload. Causes are only
// exposed in debug mode.
func globalErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.GetRespHeader("X-Request-ID")

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":      fe.Message,
				"code":       "FIBER_ERROR",
				"status":     fe.Code,
				"request_id": requestID,
			})
		}

		e := errx.From(err)
		log := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestID,
			"code":       e.Code,
		}).WithError(err)
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			log.Error("Request error")
		} else {
			log.Debug("Request rejected")
		}

		resp := e.ToResponse(debug)
		return c.Status(e.HTTPStatus).JSON(fiber.Map{
			"error":      resp.Error,
			"code":       resp.Code,
			"type":       resp.Type,
			"status":     resp.Status,
			"details":    resp.Details,
			"request_id": requestID,
		})
	}
}
