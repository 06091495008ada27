package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested user does not exist.
var ErrNotFound = errors.New("directory: not found")

// Repository provides read access to user profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a user profile by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, nip, full_name, email, role_id, position, active
		FROM users
		WHERE id = $1
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.NIP,
		&profile.FullName,
		&profile.Email,
		&profile.RoleID,
		&profile.Position,
		&profile.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("directory: query by id: %w", err)
	}

	return profile, nil
}

// List fetches all active user profiles ordered by name.
func (r *Repository) List(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT id, nip, full_name, email, role_id, position, active
		FROM users
		WHERE active = true
		ORDER BY full_name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, 32)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.NIP,
			&profile.FullName,
			&profile.Email,
			&profile.RoleID,
			&profile.Position,
			&profile.Active,
		); err != nil {
			return nil, fmt.Errorf("directory: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate profiles: %w", err)
	}

	return profiles, nil
}
