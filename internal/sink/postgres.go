package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchSender is satisfied by *pgxpool.Pool and *pgx.Conn.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const insertEventSQL = `
	INSERT INTO notification_events (id, type, timestamp, sent_at, received_at, payload)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// Postgres appends notifications to the notification_events table.
type Postgres struct {
	db BatchSender
}

// NewPostgres creates a Postgres writer.
func NewPostgres(db BatchSender) *Postgres {
	return &Postgres{db: db}
}

// Name implements Writer.
func (p *Postgres) Name() string { return "postgres" }

// Write inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (p *Postgres) Write(ctx context.Context, events []Event) (written int, err error) {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertEventSQL, e.ID, string(e.Type), e.Timestamp, e.SentAt, e.ReceivedAt, []byte(e.Payload))
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		ct, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("insert notification: %w", err)
		}
		written += int(ct.RowsAffected())
	}

	return written, nil
}
