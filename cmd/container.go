// cmd/container.go
//
// Root composition root. Owns infrastructure (Redis, optional Postgres) and
// composes the mailing container.
package main

import (
	"context"

	"github.com/Abraxas-365/bulkmail/pkg/config"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog/deliveryloginfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/mailingcontainer"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB    *sqlx.DB
	Redis *redis.Client

	// Bounded-context containers
	Mailing *mailingcontainer.Container
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure: Redis, Postgres
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Redis
	opts, err := c.Config.Redis.Options()
	if err != nil {
		logx.Fatalf("Invalid Redis configuration: %v", err)
	}
	c.Redis = redis.NewClient(opts)
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Infof("  ✅ Redis connected (%s)", opts.Addr)

	// 2. Database, only when configured
	if !c.Config.Database.Enabled() {
		logx.Info("  ⏭️  Database not configured, skipping")
		logx.Info("✅ Infrastructure initialized")
		return
	}

	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	if c.Config.Mailing.LogBackend == config.LogBackendPostgres {
		if err := deliveryloginfra.Migrate(db); err != nil {
			logx.Fatalf("Failed to migrate delivery log: %v", err)
		}
	}

	logx.Info("✅ Infrastructure initialized")
}

// ---------------------------------------------------------------------------
// Module composition: each bounded context wires itself
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	c.Mailing = mailingcontainer.New(mailingcontainer.Deps{
		Redis: c.Redis,
		DB:    c.DB,
		Cfg:   c.Config,
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
