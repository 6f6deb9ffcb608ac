package deliveryloginfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/jmoiron/sqlx"
)

type row struct {
	Recipient string    `db:"recipient"`
	Status    string    `db:"status"`
	Error     string    `db:"error"`
	SentAt    time.Time `db:"sent_at"`
}

// PostgresLog stores entries in the delivery_log table. The serial id
// gives the append order.
type PostgresLog struct {
	db *sqlx.DB
}

func NewPostgresLog(db *sqlx.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Append(ctx context.Context, key kernel.LogKey, e deliverylog.Entry) error {
	if err := deliverylog.Validate(e); err != nil {
		return err
	}
	const query = `
		INSERT INTO delivery_log (log_key, recipient, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := l.db.ExecContext(ctx, query, key.String(), e.Recipient, string(e.Status), e.Error, e.Time.UTC())
	if err != nil {
		return deliverylog.ErrUnavailable(err).WithDetail("log_key", key.String())
	}
	return nil
}

func (l *PostgresLog) Entries(ctx context.Context, key kernel.LogKey) ([]deliverylog.Entry, error) {
	const query = `
		SELECT recipient, status, error, sent_at
		FROM delivery_log
		WHERE log_key = $1
		ORDER BY id`

	var rows []row
	if err := l.db.SelectContext(ctx, &rows, query, key.String()); err != nil {
		return nil, deliverylog.ErrUnavailable(err).WithDetail("log_key", key.String())
	}

	entries := make([]deliverylog.Entry, len(rows))
	for i, r := range rows {
		entries[i] = deliverylog.Entry{
			Recipient: r.Recipient,
			Status:    deliverylog.Status(r.Status),
			Error:     r.Error,
			Time:      r.SentAt,
		}
	}
	return entries, nil
}
