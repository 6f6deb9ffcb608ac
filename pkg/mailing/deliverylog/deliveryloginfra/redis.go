package deliveryloginfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/logx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/redis/go-redis/v9"
)

// record is the stored form of one entry. Time is unix milliseconds.
type record struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Time   int64  `json:"time"`
}

func toRecord(e deliverylog.Entry) record {
	return record{
		Email:  e.Recipient,
		Status: string(e.Status),
		Error:  e.Error,
		Time:   e.Time.UnixMilli(),
	}
}

func (r record) entry() deliverylog.Entry {
	return deliverylog.Entry{
		Recipient: r.Email,
		Status:    deliverylog.Status(r.Status),
		Error:     r.Error,
		Time:      time.UnixMilli(r.Time),
	}
}

// RedisLog stores each log as a Redis list of JSON records, appended with
// RPUSH so LRANGE returns them in append order.
type RedisLog struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisLog creates a Redis-backed delivery log. prefix namespaces keys.
func NewRedisLog(rdb redis.UniversalClient, prefix string) *RedisLog {
	return &RedisLog{rdb: rdb, prefix: prefix}
}

func (l *RedisLog) key(k kernel.LogKey) string {
	return l.prefix + k.String()
}

func (l *RedisLog) Append(ctx context.Context, key kernel.LogKey, e deliverylog.Entry) error {
	if err := deliverylog.Validate(e); err != nil {
		return err
	}
	data, err := json.Marshal(toRecord(e))
	if err != nil {
		return deliverylog.ErrInvalidEntry(err.Error())
	}
	if err := l.rdb.RPush(ctx, l.key(key), data).Err(); err != nil {
		return deliverylog.ErrUnavailable(err).WithDetail("log_key", key.String())
	}
	return nil
}

func (l *RedisLog) Entries(ctx context.Context, key kernel.LogKey) ([]deliverylog.Entry, error) {
	raw, err := l.rdb.LRange(ctx, l.key(key), 0, -1).Result()
	if err != nil {
		return nil, deliverylog.ErrUnavailable(err).WithDetail("log_key", key.String())
	}

	entries := make([]deliverylog.Entry, 0, len(raw))
	for i, item := range raw {
		var r record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			logx.Warnf("deliverylog: skipping malformed entry %d in %s: %v", i, key, err)
			continue
		}
		entries = append(entries, r.entry())
	}
	return entries, nil
}
