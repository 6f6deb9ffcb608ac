package sessioninfra

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// createScript stores the recipient list and a zero cursor unless the
// session already exists.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], '0')
return 1
`)

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps sessions in Redis:
//
//	recipients:<id>   JSON array, written once
//	sentIndex:<id>    integer cursor
//	lock:session:<id> dispatch lock token
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	lockTTL   time.Duration
	lockWait  time.Duration
	lockRetry time.Duration
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithLockTTL sets how long a dispatch lock lives if its holder dies.
func WithLockTTL(d time.Duration) Option {
	return func(s *RedisStore) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithLockWait sets how long Advance waits for a busy session.
func WithLockWait(d time.Duration) Option {
	return func(s *RedisStore) {
		if d >= 0 {
			s.lockWait = d
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(rdb redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:       rdb,
		lockTTL:   30 * time.Second,
		lockWait:  10 * time.Second,
		lockRetry: 25 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ session.Store = (*RedisStore)(nil)

func (s *RedisStore) recipientsKey(id kernel.SessionID) string {
	return s.prefix + "recipients:" + id.String()
}

func (s *RedisStore) sentIndexKey(id kernel.SessionID) string {
	return s.prefix + "sentIndex:" + id.String()
}

func (s *RedisStore) lockKey(id kernel.SessionID) string {
	return s.prefix + "lock:session:" + id.String()
}

// Create stores a new session.
func (s *RedisStore) Create(ctx context.Context, sess session.Session) error {
	if len(sess.Recipients) == 0 {
		return session.ErrNoRecipients()
	}

	data, err := json.Marshal(sess.Recipients)
	if err != nil {
		return session.ErrUnavailable(err)
	}

	created, err := createScript.Run(ctx, s.rdb,
		[]string{s.recipientsKey(sess.ID), s.sentIndexKey(sess.ID)},
		data,
	).Int()
	if err != nil {
		return session.ErrUnavailable(err).WithDetail("session_id", sess.ID.String())
	}
	if created == 0 {
		return session.ErrSessionExists().WithDetail("session_id", sess.ID.String())
	}
	return nil
}

// Get loads the recipients and cursor in one round trip.
func (s *RedisStore) Get(ctx context.Context, id kernel.SessionID) (*session.Session, error) {
	vals, err := s.rdb.MGet(ctx, s.recipientsKey(id), s.sentIndexKey(id)).Result()
	if err != nil {
		return nil, session.ErrUnavailable(err).WithDetail("session_id", id.String())
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, session.ErrSessionNotFound().WithDetail("session_id", id.String())
	}

	sess := &session.Session{ID: id}
	if err := json.Unmarshal([]byte(raw), &sess.Recipients); err != nil {
		return nil, session.ErrUnavailable(err).WithDetail("session_id", id.String())
	}

	if idx, ok := vals[1].(string); ok {
		n, err := strconv.Atoi(idx)
		if err != nil {
			return nil, session.ErrUnavailable(err).WithDetail("session_id", id.String())
		}
		sess.SentIndex = n
	}

	return sess, nil
}

// Advance claims the next batch and moves the cursor once fn succeeds.
func (s *RedisStore) Advance(ctx context.Context, id kernel.SessionID, limit int, fn func(context.Context, session.Claim) error) (session.Claim, error) {
	token, err := s.lock(ctx, id)
	if err != nil {
		return session.Claim{}, err
	}
	defer s.unlock(context.WithoutCancel(ctx), id, token)

	sess, err := s.Get(ctx, id)
	if err != nil {
		return session.Claim{}, err
	}
	if sess.Total() == 0 {
		return session.Claim{}, session.ErrNoRecipients().WithDetail("session_id", id.String())
	}

	batch := sess.Next(limit)
	if len(batch) == 0 {
		return session.Claim{}, session.ErrExhausted().
			WithDetail("session_id", id.String()).
			WithDetail("total", sess.Total())
	}

	claim := session.Claim{SessionID: id, From: sess.SentIndex, Batch: batch}
	if err := fn(ctx, claim); err != nil {
		return session.Claim{}, err
	}

	if err := s.compareAndSet(ctx, id, claim.From, claim.To()); err != nil {
		logx.WithFields(logx.Fields{
			"session_id": id.String(),
			"from":       claim.From,
			"to":         claim.To(),
		}).WithError(err).Error("session: batch handed off but cursor not advanced")
		return session.Claim{}, err
	}

	return claim, nil
}

// compareAndSet moves the cursor from old to next, failing if another writer
// changed it in between.
func (s *RedisStore) compareAndSet(ctx context.Context, id kernel.SessionID, old, next int) error {
	key := s.sentIndexKey(id)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != old {
			return session.ErrCursorMoved().WithDetail("expected", old).WithDetail("actual", cur)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return session.ErrCursorMoved().WithDetail("session_id", id.String())
	case errx.IsCode(err, session.CodeCursorMoved):
		return err
	default:
		return session.ErrUnavailable(err).WithDetail("session_id", id.String())
	}
}

func (s *RedisStore) lock(ctx context.Context, id kernel.SessionID) (string, error) {
	token := uuid.NewString()
	key := s.lockKey(id)
	deadline := time.Now().Add(s.lockWait)

	for {
		ok, err := s.rdb.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return "", session.ErrUnavailable(err).WithDetail("session_id", id.String())
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", session.ErrBusy().WithDetail("session_id", id.String())
		}

		select {
		case <-ctx.Done():
			return "", session.ErrUnavailable(ctx.Err()).WithDetail("session_id", id.String())
		case <-time.After(s.lockRetry):
		}
	}
}

func (s *RedisStore) unlock(ctx context.Context, id kernel.SessionID, token string) {
	if err := unlockScript.Run(ctx, s.rdb, []string{s.lockKey(id)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logx.WithError(err).Warnf("session: failed to release lock for %s", id)
	}
}
