package letter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"letterflow/disposition"
)

var (
	// ErrNotFound signals the referenced letter does not exist.
	ErrNotFound = errors.New("letter: not found")
	// ErrDeleted signals the letter is already logically deleted.
	ErrDeleted = errors.New("letter: already deleted")
	// ErrRequestPending signals an outstanding deletion request already
	// exists; a letter holds at most one at a time.
	ErrRequestPending = errors.New("letter: deletion request already pending")
	// ErrNoPendingRequest signals approve/reject found nothing to resolve.
	ErrNoPendingRequest = errors.New("letter: no pending deletion request")
)

// Repository handles data access for letters and deletion requests.
type Repository interface {
	GetByID(ctx context.Context, letterID string) (Letter, error)
	RequestDeletion(ctx context.Context, letterID, requesterID, reason string) (DeletionRequest, error)
	ApproveDeletion(ctx context.Context, letterID, resolverID string) (DeletionRequest, string, error)
	RejectDeletion(ctx context.Context, letterID, resolverID string) (DeletionRequest, error)
	DeletionHistory(ctx context.Context, letterID string) ([]DeletionRequest, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const letterColumns = `
id, reference_no, agenda_no, subject, COALESCE(sender, ''), archivist_id,
attachment_key, needs_dean_review, is_deleted, received_at, created_at, updated_at
`

// GetByID fetches a letter by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, letterID string) (Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE id = $1`

	l, err := scanLetter(r.pool.QueryRow(ctx, query, letterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Letter{}, ErrNotFound
		}
		return Letter{}, fmt.Errorf("letter: get by id: %w", err)
	}
	return l, nil
}

// GetInfo adapts the letter row to the slice the routing engine consumes.
func (r *PGRepository) GetInfo(ctx context.Context, letterID string) (disposition.LetterInfo, error) {
	l, err := r.GetByID(ctx, letterID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return disposition.LetterInfo{}, fmt.Errorf("%w: letter %s", disposition.ErrNotFound, letterID)
		}
		return disposition.LetterInfo{}, err
	}

	agenda := 0
	if l.AgendaNo != nil {
		agenda = *l.AgendaNo
	}
	return disposition.LetterInfo{
		ID:              l.ID,
		AgendaNo:        agenda,
		Subject:         l.Subject,
		ArchivistID:     l.ArchivistID,
		NeedsDeanReview: l.NeedsDeanReview,
		IsDeleted:       l.IsDeleted,
		ReceivedAt:      l.ReceivedAt,
	}, nil
}

// RequestDeletion files a deletion request for an active letter. The
// partial unique index on open requests enforces the at-most-one invariant
// even when two requests race.
func (r *PGRepository) RequestDeletion(ctx context.Context, letterID, requesterID, reason string) (DeletionRequest, error) {
	const query = `
INSERT INTO deletion_requests (letter_id, requester_id, reason)
SELECT l.id, $2, $3
FROM letters l
WHERE l.id = $1 AND l.is_deleted = false
RETURNING id, letter_id, requester_id, reason, status, resolved_by, resolved_at, created_at
`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, letterID, requesterID, reason))
	if err == nil {
		return req, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return DeletionRequest{}, ErrRequestPending
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DeletionRequest{}, fmt.Errorf("letter: request deletion: %w", err)
	}

	// The guarded insert matched nothing: missing letter or already deleted.
	var deleted bool
	if err := r.pool.QueryRow(ctx, `SELECT is_deleted FROM letters WHERE id = $1`, letterID).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeletionRequest{}, ErrNotFound
		}
		return DeletionRequest{}, fmt.Errorf("letter: request deletion check: %w", err)
	}
	if deleted {
		return DeletionRequest{}, ErrDeleted
	}
	return DeletionRequest{}, ErrRequestPending
}

// ApproveDeletion resolves the pending request, marks the letter logically
// deleted, and returns the attachment key to release. All writes share one
// transaction so a failure leaves the letter untouched.
func (r *PGRepository) ApproveDeletion(ctx context.Context, letterID, resolverID string) (DeletionRequest, string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return DeletionRequest{}, "", fmt.Errorf("letter: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const resolveSQL = `
UPDATE deletion_requests
SET status = 'APPROVED', resolved_by = $2, resolved_at = now()
WHERE letter_id = $1 AND status = 'REQUESTED'
RETURNING id, letter_id, requester_id, reason, status, resolved_by, resolved_at, created_at
`
	req, err := scanRequest(tx.QueryRow(ctx, resolveSQL, letterID, resolverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeletionRequest{}, "", r.classifyMissingRequest(ctx, letterID)
		}
		return DeletionRequest{}, "", fmt.Errorf("letter: approve request: %w", err)
	}

	var attachmentKey *string
	if err := tx.QueryRow(ctx, `SELECT attachment_key FROM letters WHERE id = $1 FOR UPDATE`, letterID).Scan(&attachmentKey); err != nil {
		return DeletionRequest{}, "", fmt.Errorf("letter: lock letter: %w", err)
	}

	const deleteSQL = `
UPDATE letters
SET is_deleted = true, attachment_key = NULL, updated_at = now()
WHERE id = $1
`
	if _, err := tx.Exec(ctx, deleteSQL, letterID); err != nil {
		return DeletionRequest{}, "", fmt.Errorf("letter: mark deleted: %w", err)
	}

	if err := enqueueOutbox(ctx, tx, "letter.deletion_approved", map[string]any{
		"letter_id":  letterID,
		"request_id": req.ID,
	}); err != nil {
		return DeletionRequest{}, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return DeletionRequest{}, "", fmt.Errorf("letter: commit approval: %w", err)
	}

	key := ""
	if attachmentKey != nil {
		key = *attachmentKey
	}
	return req, key, nil
}

// RejectDeletion resolves the pending request negatively; the letter stays
// active and a new request may be filed later.
func (r *PGRepository) RejectDeletion(ctx context.Context, letterID, resolverID string) (DeletionRequest, error) {
	const query = `
UPDATE deletion_requests
SET status = 'REJECTED', resolved_by = $2, resolved_at = now()
WHERE letter_id = $1 AND status = 'REQUESTED'
RETURNING id, letter_id, requester_id, reason, status, resolved_by, resolved_at, created_at
`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, letterID, resolverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeletionRequest{}, r.classifyMissingRequest(ctx, letterID)
		}
		return DeletionRequest{}, fmt.Errorf("letter: reject request: %w", err)
	}
	return req, nil
}

// DeletionHistory lists all requests ever filed for the letter, newest
// first. Resolved rows are retained for audit, never deleted.
func (r *PGRepository) DeletionHistory(ctx context.Context, letterID string) ([]DeletionRequest, error) {
	const query = `
SELECT id, letter_id, requester_id, reason, status, resolved_by, resolved_at, created_at
FROM deletion_requests
WHERE letter_id = $1
ORDER BY created_at DESC
`

	rows, err := r.pool.Query(ctx, query, letterID)
	if err != nil {
		return nil, fmt.Errorf("letter: list deletion history: %w", err)
	}
	defer rows.Close()

	out := make([]DeletionRequest, 0, 4)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("letter: scan deletion request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("letter: iterate deletion history: %w", err)
	}
	return out, nil
}

func (r *PGRepository) classifyMissingRequest(ctx context.Context, letterID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM letters WHERE id = $1)`, letterID).Scan(&exists); err != nil {
		return fmt.Errorf("letter: classify resolve failure: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrNoPendingRequest
}

func scanLetter(row pgx.Row) (Letter, error) {
	var l Letter
	err := row.Scan(
		&l.ID,
		&l.ReferenceNo,
		&l.AgendaNo,
		&l.Subject,
		&l.Sender,
		&l.ArchivistID,
		&l.AttachmentKey,
		&l.NeedsDeanReview,
		&l.IsDeleted,
		&l.ReceivedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return Letter{}, err
	}
	return l, nil
}

func scanRequest(row pgx.Row) (DeletionRequest, error) {
	var req DeletionRequest
	err := row.Scan(
		&req.ID,
		&req.LetterID,
		&req.RequesterID,
		&req.Reason,
		&req.Status,
		&req.ResolvedBy,
		&req.ResolvedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return DeletionRequest{}, err
	}
	return req, nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("letter: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("letter: enqueue outbox: %w", err)
	}
	return nil
}
