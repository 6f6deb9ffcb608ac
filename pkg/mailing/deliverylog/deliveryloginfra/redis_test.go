package deliveryloginfra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLog_AppendAndEntries(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	log := NewRedisLog(rdb, "")
	ctx := context.Background()
	key := kernel.SessionLogKey("s1")
	at := time.UnixMilli(1700000000000)

	require.NoError(t, log.Append(ctx, key, deliverylog.Sent("a@x.com", at)))
	require.NoError(t, log.Append(ctx, key, deliverylog.Failed("b@x.com", "550 rejected", at)))

	raw, err := mr.List("emaillog:s1")
	require.NoError(t, err)
	require.Equal(t, []string{
		`{"email":"a@x.com","status":"sent","time":1700000000000}`,
		`{"email":"b@x.com","status":"failed","error":"550 rejected","time":1700000000000}`,
	}, raw)

	entries, err := log.Entries(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a@x.com", entries[0].Recipient)
	require.Equal(t, deliverylog.StatusFailed, entries[1].Status)
	require.Equal(t, "550 rejected", entries[1].Error)
	require.True(t, entries[1].Time.Equal(at))
}

func TestRedisLog_MissingKeyIsEmpty(t *testing.T) {
	_, rdb := setupTestRedis(t)
	entries, err := NewRedisLog(rdb, "").Entries(context.Background(), kernel.SessionLogKey("nope"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRedisLog_SkipsMalformed(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	ctx := context.Background()
	log := NewRedisLog(rdb, "")

	_, err := mr.Push("emaillog:s1", "not json")
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, "emaillog:s1", deliverylog.Sent("a@x.com", time.Now())))

	entries, err := log.Entries(ctx, "emaillog:s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRedisLog_RejectsInvalidEntry(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	err := NewRedisLog(rdb, "").Append(context.Background(), "emaillog:s1",
		deliverylog.Entry{Recipient: "a@x.com", Status: deliverylog.StatusFailed, Time: time.Now()})
	require.True(t, errx.IsCode(err, deliverylog.CodeInvalidEntry))
	require.False(t, mr.Exists("emaillog:s1"))
}

func TestRedisLog_ConcurrentAppendsKeepEveryEntry(t *testing.T) {
	_, rdb := setupTestRedis(t)
	log := NewRedisLog(rdb, "app:")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, log.Append(ctx, "emaillog:s1", deliverylog.Sent("a@x.com", time.Now())))
		}()
	}
	wg.Wait()

	entries, err := log.Entries(ctx, "emaillog:s1")
	require.NoError(t, err)
	require.Len(t, entries, 20)
}

func TestRedisLog_Unavailable(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	mr.Close()

	err := NewRedisLog(rdb, "").Append(context.Background(), "emaillog:s1", deliverylog.Sent("a@x.com", time.Now()))
	require.True(t, errx.IsCode(err, deliverylog.CodeUnavailable))

	_, err = NewRedisLog(rdb, "").Entries(context.Background(), "emaillog:s1")
	require.True(t, errx.IsCode(err, deliverylog.CodeUnavailable))
}
