package directory

import (
	"context"

	"letterflow/disposition"
)

// ProfileReader abstracts repository operations for the service.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
}

// Service exposes business-level directory operations.
type Service struct {
	repo ProfileReader
}

// NewService builds a Service using the provided repository.
func NewService(repo ProfileReader) *Service {
	return &Service{repo: repo}
}

// GetByID returns the user profile for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all active user profiles.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

// ForwardCandidates returns the users selectable as disposition recipients
// for the given submitter: only position holders, never the submitter
// themselves, and never the outgoing-letter archivist role.
func (s *Service) ForwardCandidates(ctx context.Context, selfID string) ([]Profile, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(all))
	for _, p := range all {
		if p.ID == selfID {
			continue
		}
		if p.RoleID == disposition.RoleOutboundArchivist {
			continue
		}
		if !p.HasPosition() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
