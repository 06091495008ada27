package letter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"letterflow/disposition"
)

// ErrForbidden signals the caller's role may not resolve deletion requests.
var ErrForbidden = errors.New("letter: forbidden")

// AttachmentRemover releases a stored attachment object. The blob package
// provides the production implementation.
type AttachmentRemover interface {
	Remove(ctx context.Context, key string) error
}

// Service exposes the letter read model and the deletion-request workflow.
type Service struct {
	repo        Repository
	attachments AttachmentRemover
}

func NewService(repo Repository, attachments AttachmentRemover) *Service {
	return &Service{repo: repo, attachments: attachments}
}

// GetByID returns the letter for display alongside its chain.
func (s *Service) GetByID(ctx context.Context, letterID string) (Letter, error) {
	return s.repo.GetByID(ctx, letterID)
}

// RequestDeletion files a deletion request. Any authenticated archive user
// may request; only the top authority resolves.
func (s *Service) RequestDeletion(ctx context.Context, requesterID, letterID, reason string) (DeletionRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return DeletionRequest{}, fmt.Errorf("letter: deletion reason required")
	}
	return s.repo.RequestDeletion(ctx, letterID, requesterID, reason)
}

// ApproveDeletion resolves the pending request, logically deletes the
// letter, and releases its stored attachment.
func (s *Service) ApproveDeletion(ctx context.Context, cap disposition.Capability, letterID string) (DeletionRequest, error) {
	if !cap.IsTopAuthority() {
		return DeletionRequest{}, ErrForbidden
	}

	req, attachmentKey, err := s.repo.ApproveDeletion(ctx, letterID, cap.UserID)
	if err != nil {
		return DeletionRequest{}, err
	}

	// The database commit is the point of no return; object removal is
	// idempotent and safe to retry if it fails here.
	if attachmentKey != "" && s.attachments != nil {
		if err := s.attachments.Remove(ctx, attachmentKey); err != nil {
			return req, fmt.Errorf("letter: release attachment %s: %w", attachmentKey, err)
		}
	}

	return req, nil
}

// RejectDeletion resolves the pending request negatively; the letter stays
// active and a new request may be filed later.
func (s *Service) RejectDeletion(ctx context.Context, cap disposition.Capability, letterID string) (DeletionRequest, error) {
	if !cap.IsTopAuthority() {
		return DeletionRequest{}, ErrForbidden
	}
	return s.repo.RejectDeletion(ctx, letterID, cap.UserID)
}

// DeletionHistory lists the letter's past and pending requests for audit.
func (s *Service) DeletionHistory(ctx context.Context, letterID string) ([]DeletionRequest, error) {
	return s.repo.DeletionHistory(ctx, letterID)
}
