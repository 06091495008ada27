package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Message is one pending outbox row.
type Message struct {
	ID      string
	Topic   string
	Payload []byte
}

// Source drains and acknowledges pending outbox messages.
type Source interface {
	NextBatch(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
}

// PGSource reads the outbox table. The claim UPDATE with SKIP LOCKED keeps
// multiple relay instances from double-publishing the same row.
type PGSource struct {
	pool *pgxpool.Pool
}

func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) NextBatch(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
UPDATE outbox
SET status = 'sending'
WHERE id IN (
    SELECT id FROM outbox
    WHERE status = 'pending'
    ORDER BY created_at ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, topic, payload
`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: query outbox: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload); err != nil {
			return nil, fmt.Errorf("events: scan outbox row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: iterate outbox: %w", err)
	}
	return out, nil
}

func (s *PGSource) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE outbox SET status = 'sent', published_at = now() WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("events: mark sent: %w", err)
	}
	return nil
}

func (s *PGSource) MarkFailed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE outbox SET status = 'pending', attempts = attempts + 1 WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

// Relay periodically drains the outbox and publishes each message. Rows are
// only marked sent after a successful publish, so delivery is at-least-once
// and consumers must dedupe on message id.
type Relay struct {
	source Source
	pub    Publisher
	log    *slog.Logger

	BatchSize   int
	Concurrency int
}

func NewRelay(source Source, pub Publisher, logger *slog.Logger) *Relay {
	return &Relay{
		source:      source,
		pub:         pub,
		log:         logger,
		BatchSize:   50,
		Concurrency: 4,
	}
}

// Run drains the outbox on the given interval until the context ends.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.log.Error("outbox drain failed", slog.Any("error", err))
			}
		}
	}
}

// Drain publishes one batch of pending messages.
func (r *Relay) Drain(ctx context.Context) error {
	batch, err := r.source.NextBatch(ctx, r.BatchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	sent := make([]string, 0, len(batch))
	failed := make([]string, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	results := make([]error, len(batch))
	for i, msg := range batch {
		g.Go(func() error {
			results[i] = r.pub.Publish(gctx, msg.Topic, msg.ID, msg.Payload)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, msg := range batch {
		if results[i] != nil {
			r.log.Warn("publish failed",
				slog.String("id", msg.ID),
				slog.String("topic", msg.Topic),
				slog.Any("error", results[i]),
			)
			failed = append(failed, msg.ID)
			continue
		}
		sent = append(sent, msg.ID)
	}

	if err := r.source.MarkSent(ctx, sent); err != nil {
		return err
	}
	return r.source.MarkFailed(ctx, failed)
}
