package disposition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the data access the routing service requires.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Record, error)
	ChainByLetter(ctx context.Context, letterID string) (Chain, error)
	PendingForRecipient(ctx context.Context, userID string) ([]ChainSummary, error)
	StatusVocabulary(ctx context.Context) ([]StatusInfo, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `
d.id, d.letter_id, d.parent_id, d.submitter_id, d.recipient_id,
d.message, d.status_id, d.seq, d.created_at,
s.full_name, COALESCE(s.position, ''),
COALESCE(r.full_name, ''), COALESCE(r.position, '')
`

// Create appends a record to a letter's chain. The letter row is locked for
// the duration of the transaction so concurrent appends against the same
// chain are serialized; the tail is re-checked under the lock, which is the
// authoritative guard (the permission evaluator is a UX convenience only).
func (repo *PGRepository) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.LetterID == "" {
		return Record{}, fmt.Errorf("%w: letter id required", ErrValidation)
	}
	if params.SubmitterID == "" {
		return Record{}, fmt.Errorf("%w: submitter id required", ErrValidation)
	}

	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("disposition: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var deleted bool
	err = tx.QueryRow(ctx, `SELECT is_deleted FROM letters WHERE id = $1 FOR UPDATE`, params.LetterID).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: letter %s", ErrNotFound, params.LetterID)
		}
		return Record{}, fmt.Errorf("disposition: lock letter: %w", err)
	}
	if deleted {
		return Record{}, fmt.Errorf("%w: letter is deleted", ErrValidation)
	}

	var (
		tailID     *string
		tailStatus *int
		tailSeq    int
	)
	const tailSQL = `
SELECT id, status_id, seq
FROM dispositions
WHERE letter_id = $1
ORDER BY seq DESC
LIMIT 1
`
	err = tx.QueryRow(ctx, tailSQL, params.LetterID).Scan(&tailID, &tailStatus, &tailSeq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("disposition: read tail: %w", err)
	}

	if tailID == nil {
		if params.ParentID != nil {
			return Record{}, fmt.Errorf("%w: parent %s is not the chain tail", ErrConflict, *params.ParentID)
		}
	} else {
		if Status(*tailStatus).Terminal() {
			return Record{}, fmt.Errorf("%w: chain is closed", ErrConflict)
		}
		if params.ParentID == nil || *params.ParentID != *tailID {
			return Record{}, fmt.Errorf("%w: stale parent reference", ErrConflict)
		}
	}

	chain := Chain{}
	if tailID != nil {
		chain = Chain{{Status: Status(*tailStatus)}}
	}
	if err := ValidateNext(chain, params.Status, params.RecipientID); err != nil {
		return Record{}, err
	}

	const insertSQL = `
INSERT INTO dispositions (letter_id, parent_id, submitter_id, recipient_id, message, status_id, seq)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at
`
	rec := Record{
		LetterID:    params.LetterID,
		ParentID:    params.ParentID,
		SubmitterID: params.SubmitterID,
		RecipientID: params.RecipientID,
		Message:     params.Message,
		Status:      params.Status,
		Seq:         tailSeq + 1,
	}
	err = tx.QueryRow(ctx, insertSQL,
		params.LetterID,
		params.ParentID,
		params.SubmitterID,
		params.RecipientID,
		params.Message,
		int(params.Status),
		rec.Seq,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, fmt.Errorf("%w: concurrent append lost", ErrConflict)
		}
		return Record{}, fmt.Errorf("disposition: insert record: %w", err)
	}

	topic := "disposition.created"
	if params.Status.Terminal() {
		topic = "disposition.closed"
	}
	if err := enqueueOutbox(ctx, tx, topic, map[string]any{
		"disposition_id": rec.ID,
		"letter_id":      rec.LetterID,
		"submitter_id":   rec.SubmitterID,
		"status":         int(rec.Status),
	}); err != nil {
		return Record{}, err
	}

	const displaySQL = `
SELECT s.full_name, COALESCE(s.position, ''), COALESCE(r.full_name, ''), COALESCE(r.position, '')
FROM dispositions d
JOIN users s ON s.id = d.submitter_id
LEFT JOIN users r ON r.id = d.recipient_id
WHERE d.id = $1
`
	if err := tx.QueryRow(ctx, displaySQL, rec.ID).Scan(
		&rec.SubmitterName, &rec.SubmitterPosition, &rec.RecipientName, &rec.RecipientPosition,
	); err != nil {
		return Record{}, fmt.Errorf("disposition: join display fields: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("disposition: commit: %w", err)
	}

	return rec, nil
}

// ChainByLetter returns the letter's chain ordered oldest to newest by seq.
func (repo *PGRepository) ChainByLetter(ctx context.Context, letterID string) (Chain, error) {
	query := `
SELECT ` + recordColumns + `
FROM dispositions d
JOIN users s ON s.id = d.submitter_id
LEFT JOIN users r ON r.id = d.recipient_id
WHERE d.letter_id = $1
ORDER BY d.seq ASC
`

	rows, err := repo.pool.Query(ctx, query, letterID)
	if err != nil {
		return nil, fmt.Errorf("disposition: query chain: %w", err)
	}
	defer rows.Close()

	chain := make(Chain, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("disposition: scan record: %w", err)
		}
		chain = append(chain, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("disposition: iterate chain: %w", err)
	}
	return chain, nil
}

// PendingForRecipient lists chains whose tail currently awaits action from
// the given user.
func (repo *PGRepository) PendingForRecipient(ctx context.Context, userID string) ([]ChainSummary, error) {
	const query = `
SELECT l.id, COALESCE(l.agenda_no, 0), l.subject, l.received_at,
       d.id, u.full_name, d.message, d.status_id, d.created_at
FROM letters l
JOIN LATERAL (
    SELECT * FROM dispositions WHERE letter_id = l.id ORDER BY seq DESC LIMIT 1
) d ON true
JOIN users u ON u.id = d.submitter_id
WHERE d.recipient_id = $1
  AND d.status_id NOT IN ($2, $3)
  AND l.is_deleted = false
ORDER BY d.created_at DESC
`

	rows, err := repo.pool.Query(ctx, query, userID, int(StatusCompleted), int(StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("disposition: query pending: %w", err)
	}
	defer rows.Close()

	out := make([]ChainSummary, 0, 8)
	for rows.Next() {
		var (
			sum      ChainSummary
			statusID int
		)
		if err := rows.Scan(
			&sum.LetterID, &sum.AgendaNo, &sum.Subject, &sum.ReceivedAt,
			&sum.TailID, &sum.SubmitterName, &sum.Message, &statusID, &sum.DispositionedAt,
		); err != nil {
			return nil, fmt.Errorf("disposition: scan summary: %w", err)
		}
		sum.Status = Status(statusID)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("disposition: iterate pending: %w", err)
	}
	return out, nil
}

// StatusVocabulary reads the status catalogue in id order.
func (repo *PGRepository) StatusVocabulary(ctx context.Context) ([]StatusInfo, error) {
	const query = `SELECT id, label FROM disposition_statuses ORDER BY id ASC`

	rows, err := repo.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("disposition: query vocabulary: %w", err)
	}
	defer rows.Close()

	out := make([]StatusInfo, 0, 8)
	for rows.Next() {
		var info StatusInfo
		if err := rows.Scan(&info.ID, &info.Label); err != nil {
			return nil, fmt.Errorf("disposition: scan vocabulary: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("disposition: iterate vocabulary: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec      Record
		statusID int
	)
	err := row.Scan(
		&rec.ID,
		&rec.LetterID,
		&rec.ParentID,
		&rec.SubmitterID,
		&rec.RecipientID,
		&rec.Message,
		&statusID,
		&rec.Seq,
		&rec.CreatedAt,
		&rec.SubmitterName,
		&rec.SubmitterPosition,
		&rec.RecipientName,
		&rec.RecipientPosition,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(statusID)
	return rec, nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("disposition: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("disposition: enqueue outbox: %w", err)
	}
	return nil
}
