package status_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/delivery"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog/deliveryloginfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session/sessioninfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/status"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// rejectingSender fails for one address and accepts the rest.
type rejectingSender struct{ reject string }

func (s rejectingSender) SendVia(_ context.Context, _ notifx.Relay, msg notifx.EmailMessage) (notifx.SendResult, error) {
	if msg.To[0] == s.reject {
		return notifx.SendResult{To: msg.To[0]}, errors.New("550 user unknown, mailbox disabled")
	}
	return notifx.SendResult{To: msg.To[0], Success: true, Via: "strict"}, nil
}

type fixture struct {
	rdb   *redis.Client
	store *sessioninfra.RedisStore
	log   *deliveryloginfra.RedisLog
	agg   *status.Aggregator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := sessioninfra.NewRedisStore(rdb)
	log := deliveryloginfra.NewRedisLog(rdb, "")
	return &fixture{rdb: rdb, store: store, log: log, agg: status.NewAggregator(store, log)}
}

func tenRecipients() []string {
	out := make([]string, 10)
	for i := range out {
		out[i] = fmt.Sprintf("user%d@example.com", i)
	}
	return out
}

func TestAggregator_TenRecipientScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	queue := jobxredis.NewRedisQueue(f.rdb, jobxredis.WithPollInterval(5*time.Millisecond))
	client := jobx.NewClient(queue,
		jobx.WithQueues("email"),
		jobx.WithConcurrency(2),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(20*time.Millisecond),
		jobx.WithDefaultRetryDelay(time.Hour),
		jobx.WithShutdownTimeout(time.Second),
	)
	delivery.NewWorker(rejectingSender{reject: "user2@example.com"}, f.log).Register(client)

	d := dispatch.New(f.store, client)
	res, err := d.DispatchSession(ctx, "s1", 4, dispatch.Message{FromEmail: "news@acme.com", Subject: "Hi", Body: "hello"},
		notifx.Relay{Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)
	require.Equal(t, 4, res.BatchCount)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Start(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		entries, err := f.log.Entries(ctx, kernel.SessionLogKey("s1"))
		return err == nil && len(entries) == 4
	}, 3*time.Second, 10*time.Millisecond)

	snap, err := f.agg.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, status.Snapshot{
		Total:     10,
		SentIndex: 4,
		Sent:      3,
		Failed:    1,
		Pending:   6,
		LastError: "550 user unknown, mailbox disabled",
	}, snap)
	require.LessOrEqual(t, snap.Sent+snap.Failed, res.BatchCount)
}

func TestAggregator_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))
	require.NoError(t, f.log.Append(ctx, "emaillog:s1", deliverylog.Sent("user0@example.com", time.Now())))
	require.NoError(t, f.log.Append(ctx, "emaillog:s1", deliverylog.Failed("user1@example.com", "first", time.Now())))
	require.NoError(t, f.log.Append(ctx, "emaillog:s1", deliverylog.Failed("user2@example.com", "second", time.Now())))

	first, err := f.agg.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := f.agg.Get(ctx, "s1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, "second", first.LastError)
	require.Equal(t, 10, first.Pending)
}

func TestAggregator_UnknownSessionIsZero(t *testing.T) {
	f := setup(t)

	snap, err := f.agg.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, status.Snapshot{}, snap)
}

func TestAggregator_EmptyID(t *testing.T) {
	f := setup(t)

	_, err := f.agg.Get(context.Background(), "")
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))
}

func TestAggregator_StoreUnavailable(t *testing.T) {
	f := setup(t)
	f.rdb.Close()

	_, err := f.agg.Get(context.Background(), "s1")
	require.True(t, errx.IsCode(err, mailing.CodeStoreUnavailable))
}
