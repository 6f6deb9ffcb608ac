package sessioninfra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
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

func tenRecipients() []string {
	out := make([]string, 10)
	for i := range out {
		out[i] = fmt.Sprintf("user%d@example.com", i)
	}
	return out
}

func noop(context.Context, session.Claim) error { return nil }

func TestCreateAndGet(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))
	require.Equal(t, "0", mustGet(t, mr, "sentIndex:s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 10, got.Total())
	require.Zero(t, got.SentIndex)

	err = store.Create(ctx, session.Session{ID: "s1", Recipients: []string{"other@example.com"}})
	require.True(t, errx.IsCode(err, session.CodeSessionExists))

	got, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 10, got.Total(), "recipients must not be overwritten")

	err = store.Create(ctx, session.Session{ID: "s2"})
	require.True(t, errx.IsCode(err, session.CodeNoRecipients))

	_, err = store.Get(ctx, "missing")
	require.True(t, errx.IsCode(err, session.CodeSessionNotFound))
}

func TestKeyPrefix(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb, WithKeyPrefix("bulk:"))

	require.NoError(t, store.Create(context.Background(), session.Session{ID: "s1", Recipients: tenRecipients()}))
	require.True(t, mr.Exists("bulk:recipients:s1"))
	require.True(t, mr.Exists("bulk:sentIndex:s1"))
}

func TestAdvance_MovesCursorByBatch(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	claim, err := store.Advance(ctx, "s1", 4, noop)
	require.NoError(t, err)
	require.Equal(t, 0, claim.From)
	require.Equal(t, 4, claim.To())
	require.Equal(t, tenRecipients()[:4], claim.Batch)
	require.Equal(t, "4", mustGet(t, mr, "sentIndex:s1"))
	require.False(t, mr.Exists("lock:session:s1"), "lock must be released")

	claim, err = store.Advance(ctx, "s1", 0, noop)
	require.NoError(t, err)
	require.Equal(t, 6, len(claim.Batch))
	require.Equal(t, "10", mustGet(t, mr, "sentIndex:s1"))

	_, err = store.Advance(ctx, "s1", 100, noop)
	require.True(t, errx.IsCode(err, session.CodeExhausted))
	require.Equal(t, "10", mustGet(t, mr, "sentIndex:s1"))
}

func TestAdvance_FailedHandOffKeepsCursor(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	boom := errors.New("queue down")
	_, err := store.Advance(ctx, "s1", 4, func(context.Context, session.Claim) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, "0", mustGet(t, mr, "sentIndex:s1"))
	require.False(t, mr.Exists("lock:session:s1"))
}

func TestAdvance_UnknownSession(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)

	_, err := store.Advance(context.Background(), "nope", 4, noop)
	require.True(t, errx.IsCode(err, session.CodeSessionNotFound))
}

func TestAdvance_ConcurrentClaimsAreDisjoint(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb, WithLockWait(5*time.Second))
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
		errs    []error
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim, err := store.Advance(ctx, "s1", 2, noop)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			claimed = append(claimed, claim.Batch...)
		}()
	}
	wg.Wait()

	require.Len(t, claimed, 10)
	sort.Strings(claimed)
	want := tenRecipients()
	sort.Strings(want)
	require.Equal(t, want, claimed, "every recipient claimed exactly once")

	require.Len(t, errs, 3)
	for _, err := range errs {
		require.True(t, errx.IsCode(err, session.CodeExhausted))
	}
	require.Equal(t, "10", mustGet(t, mr, "sentIndex:s1"))
}

func TestAdvance_BusySession(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb, WithLockWait(50*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	require.NoError(t, mr.Set("lock:session:s1", "someone-else"))

	_, err := store.Advance(ctx, "s1", 4, noop)
	require.True(t, errx.IsCode(err, session.CodeBusy))
	require.Equal(t, "someone-else", mustGet(t, mr, "lock:session:s1"), "foreign lock untouched")
	require.Equal(t, "0", mustGet(t, mr, "sentIndex:s1"))
}

func TestAdvance_DetectsCursorMovedUnderneath(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.Session{ID: "s1", Recipients: tenRecipients()}))

	_, err := store.Advance(ctx, "s1", 4, func(context.Context, session.Claim) error {
		return mr.Set("sentIndex:s1", "7")
	})
	require.True(t, errx.IsCode(err, session.CodeCursorMoved))
	require.Equal(t, "7", mustGet(t, mr, "sentIndex:s1"))
}

func TestStoreUnavailable(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb)
	mr.Close()

	_, err := store.Get(context.Background(), kernel.SessionID("s1"))
	require.True(t, errx.IsCode(err, session.CodeUnavailable))

	_, err = store.Advance(context.Background(), "s1", 1, noop)
	require.True(t, errx.IsCode(err, session.CodeUnavailable))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
