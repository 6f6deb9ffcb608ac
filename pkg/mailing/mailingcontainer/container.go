package mailingcontainer

import (
	"github.com/Abraxas-365/bulkmail/pkg/config"
	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/delivery"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog/deliveryloginfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/mailingapi"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/mailingsrv"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session/sessioninfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/status"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"github.com/Abraxas-365/bulkmail/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/bulkmail/pkg/notifx/notifxsmtp"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: external dependencies of the mailing context.
// ---------------------------------------------------------------------------

type Deps struct {
	Redis redis.UniversalClient
	// DB is only required by the postgres log backend.
	DB  *sqlx.DB
	Cfg *config.Config
}

// ---------------------------------------------------------------------------
// Container: the public surface of the mailing module.
// ---------------------------------------------------------------------------

type Container struct {
	// Queue backend, also used by cmd/ for health reporting
	Queue *jobxredis.RedisQueue
	Jobs  *jobx.Client

	// Cascade is nil when the console provider is configured.
	Cascade *notifxsmtp.Cascade

	Service  *mailingsrv.Service
	Handlers *mailingapi.MailingHandlers
}

// ---------------------------------------------------------------------------
// New: infra → domain services → handlers. The delivery worker is registered
// on the job client here; cmd/ decides whether to Start it.
// ---------------------------------------------------------------------------

func New(deps Deps) *Container {
	logx.Info("🔧 Initializing mailing container...")
	cfg := deps.Cfg
	c := &Container{}

	// ── Stores ───────────────────────────────────────────────────────────

	sessions := sessioninfra.NewRedisStore(deps.Redis,
		sessioninfra.WithKeyPrefix(cfg.Mailing.KeyPrefix),
		sessioninfra.WithLockTTL(cfg.Mailing.LockTTL),
	)

	var log deliverylog.Log
	switch cfg.Mailing.LogBackend {
	case config.LogBackendPostgres:
		log = deliveryloginfra.NewPostgresLog(deps.DB)
		logx.Info("  ✅ Using Postgres delivery log")
	default:
		log = deliveryloginfra.NewRedisLog(deps.Redis, cfg.Mailing.KeyPrefix)
		logx.Info("  ✅ Using Redis delivery log")
	}

	// ── Work queue ───────────────────────────────────────────────────────

	c.Queue = jobxredis.NewRedisQueue(deps.Redis, jobxredis.WithLeaseTimeout(cfg.Jobx.LeaseTimeout))
	c.Jobs = jobx.NewClient(c.Queue,
		jobx.WithQueues(cfg.Jobx.Queues...),
		jobx.WithConcurrency(cfg.Jobx.Concurrency),
		jobx.WithPollInterval(cfg.Jobx.PollInterval),
		jobx.WithShutdownTimeout(cfg.Jobx.ShutdownTimeout),
		jobx.WithDequeueTimeout(cfg.Jobx.DequeueTimeout),
		jobx.WithDefaultRetryDelay(cfg.Jobx.DefaultRetryDelay),
		jobx.WithMaxRetries(cfg.Jobx.MaxRetries),
		jobx.WithJobTimeout(cfg.Jobx.JobTimeout),
	)

	// ── Transport ────────────────────────────────────────────────────────

	var sender notifx.RelaySender
	switch cfg.Notifx.Provider {
	case config.ProviderConsole:
		sender = notifxconsole.NewConsoleProvider()
		logx.Warn("  ⚠️  Using console email provider (nothing is delivered)")
	default:
		c.Cascade = notifxsmtp.New(
			notifxsmtp.WithDialTimeout(cfg.Notifx.DialTimeout),
			notifxsmtp.WithGreetingTimeout(cfg.Notifx.GreetingTimeout),
			notifxsmtp.WithSocketTimeout(cfg.Notifx.SocketTimeout),
			notifxsmtp.WithHeloName(cfg.Notifx.HeloName),
		)
		sender = c.Cascade
		logx.Info("  ✅ Using SMTP cascade sender")
	}

	// ── Domain services ──────────────────────────────────────────────────

	dispatcher := dispatch.New(sessions, c.Jobs, dispatch.WithQueue(cfg.Mailing.Queue))
	aggregator := status.NewAggregator(sessions, log)
	delivery.NewWorker(notifx.NewClient(sender), log).Register(c.Jobs)

	c.Service = mailingsrv.NewService(sessions, dispatcher, aggregator, log)
	c.Handlers = mailingapi.NewMailingHandlers(c.Service)

	logx.Info("✅ Mailing container initialized")
	return c
}
