package mailingsrv_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog/deliveryloginfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/mailingsrv"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session/sessioninfra"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/status"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*mailingsrv.Service, *deliveryloginfra.RedisLog) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := sessioninfra.NewRedisStore(rdb)
	log := deliveryloginfra.NewRedisLog(rdb, "")
	client := jobx.NewClient(jobxredis.NewRedisQueue(rdb), jobx.WithQueues("email"))
	return mailingsrv.NewService(
		store,
		dispatch.New(store, client),
		status.NewAggregator(store, log),
		log,
	), log
}

var relay = notifx.Relay{Host: "smtp.example.com", Port: 25}

func TestCreateSession_FiltersAndGeneratesID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "", []string{" a@x.com ", "bad", "b@x.com", "a@x.com"})
	require.NoError(t, err)
	require.False(t, sess.ID.IsEmpty())
	require.Equal(t, []string{"a@x.com", "b@x.com", "a@x.com"}, sess.Recipients)

	snap, err := svc.GetStatus(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 3, snap.Total)
	require.Equal(t, 3, snap.Pending)
}

func TestCreateSession_Errors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "s1", []string{"nope"})
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))

	_, err = svc.CreateSession(ctx, "s1", []string{"a@x.com"})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "s1", []string{"b@x.com"})
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))
}

func TestSessionID_CannotAliasTestLog(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()

	testKey := kernel.TestLogKey(time.UnixMilli(1700000000000))
	require.NoError(t, log.Append(ctx, testKey, deliverylog.Sent("t@x.com", time.UnixMilli(1700000000001))))

	id := kernel.SessionID("test:1700000000000")
	_, err := svc.CreateSession(ctx, id, []string{"a@x.com"})
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))

	_, err = svc.GetStatus(ctx, id)
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))

	var buf bytes.Buffer
	err = svc.ExportSessionLog(ctx, &buf, id)
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))
	require.Zero(t, buf.Len())

	_, err = svc.DispatchBatch(ctx, mailingsrv.DispatchRequest{SessionID: id, Relay: relay,
		Message: dispatch.Message{FromEmail: "news@acme.com", Subject: "Hi", Body: "hello"}})
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))

	_, err = svc.CreateSession(ctx, kernel.SessionID(strings.Repeat("x", kernel.MaxSessionIDLength+1)), []string{"a@x.com"})
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))
}

func TestDispatchBatch_Modes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	msg := dispatch.Message{FromEmail: "news@acme.com", Subject: "Hi", Body: "hello"}

	_, err := svc.CreateSession(ctx, "s1", []string{"a@x.com", "b@x.com", "c@x.com"})
	require.NoError(t, err)

	res, err := svc.DispatchBatch(ctx, mailingsrv.DispatchRequest{SessionID: "s1", Limit: 2, Message: msg, Relay: relay})
	require.NoError(t, err)
	require.Equal(t, 2, res.BatchCount)

	res, err = svc.DispatchBatch(ctx, mailingsrv.DispatchRequest{Test: true, TestRecipients: "t@x.com", Message: msg, Relay: relay})
	require.NoError(t, err)
	require.Equal(t, 1, res.BatchCount)
	require.True(t, strings.HasPrefix(res.LogKey.String(), "emaillog:test:"))

	snap, err := svc.GetStatus(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, snap.SentIndex)
	require.Equal(t, 1, snap.Pending)
}

func TestExportSessionLog(t *testing.T) {
	svc, log := newService(t)
	ctx := context.Background()
	at := time.UnixMilli(1700000000000)

	var buf bytes.Buffer
	err := svc.ExportSessionLog(ctx, &buf, "s1")
	require.True(t, errx.IsCode(err, mailing.CodeLogNotFound))
	require.Zero(t, buf.Len())

	require.NoError(t, log.Append(ctx, kernel.SessionLogKey("s1"), deliverylog.Sent("a@x.com", at)))
	require.NoError(t, log.Append(ctx, kernel.SessionLogKey("s1"), deliverylog.Failed("b@x.com", "421 try again, later", at)))

	require.NoError(t, svc.ExportSessionLog(ctx, &buf, "s1"))
	require.Equal(t,
		"email,status,error,time\n"+
			"a@x.com,sent,,1700000000000\n"+
			"b@x.com,failed,\"421 try again, later\",1700000000000\n",
		buf.String())

	err = svc.ExportSessionLog(ctx, &buf, "")
	require.True(t, errx.IsCode(err, mailing.CodeInvalidInput))
}
