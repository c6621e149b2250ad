// Package outbox relays catalog_outbox rows written by the Postgres media
// store to NATS JetStream.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/natsconn"
)

const (
	StreamName    = "CATALOG_EVENTS"
	StreamSubject = "catalog.>"
)

// JetStream is the subset of nats.JetStreamContext the relay uses.
type JetStream interface {
	natsconn.StreamManager
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type Publisher struct {
	Log          *zap.Logger
	DB           TxBeginner
	JS           JetStream
	BatchSize    int
	PollInterval time.Duration
}

type outboxRow struct {
	ID        string
	EventType string
	Payload   json.RawMessage
}

func NewPublisher(log *zap.Logger, db TxBeginner, js JetStream) *Publisher {
	return &Publisher{
		Log:          log,
		DB:           db,
		JS:           js,
		BatchSize:    100,
		PollInterval: 2 * time.Second,
	}
}

func (p *Publisher) EnsureStream() error {
	return natsconn.EnsureStream(p.JS, StreamName, StreamSubject, 7*24*time.Hour)
}

// Run polls the outbox until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.EnsureStream(); err != nil {
		return err
	}

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.flushOnce(ctx); err != nil {
				p.Log.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

func (p *Publisher) flushOnce(ctx context.Context) error {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, event_type, payload
FROM catalog_outbox
WHERE published_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`, p.BatchSize)
	if err != nil {
		return err
	}

	items := make([]outboxRow, 0, p.BatchSize)
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.EventType, &item.Payload); err != nil {
			rows.Close()
			return err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	ids, pubErr := p.publish(items)
	if len(ids) == 0 {
		return pubErr
	}

	if _, err := tx.Exec(ctx, `UPDATE catalog_outbox SET published_at = now() WHERE id::text = ANY($1)`, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return pubErr
}

// publish sends items in order and stops at the first failure. It returns
// the ids that reached JetStream so they can be marked published.
func (p *Publisher) publish(items []outboxRow) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, err := p.JS.Publish(item.EventType, item.Payload); err != nil {
			return ids, err
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}
