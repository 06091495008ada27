package disposition

import (
	"context"
	"fmt"
	"strings"
)

// LetterReader supplies the letter fields the routing engine needs. The
// letter package provides the production implementation.
type LetterReader interface {
	GetInfo(ctx context.Context, letterID string) (LetterInfo, error)
}

// Service orchestrates chain reads and appends: it gates every submit
// through the state machine and the permission evaluator before touching
// the store. The store re-checks the tail server-side, so a stale client
// view degrades into ErrConflict rather than a corrupt chain.
type Service struct {
	repo    Repository
	letters LetterReader
}

func NewService(repo Repository, letters LetterReader) *Service {
	return &Service{repo: repo, letters: letters}
}

// SubmitParams is the caller-supplied portion of a new routing step.
type SubmitParams struct {
	LetterID    string
	Message     string
	Status      Status
	RecipientID *string
}

// Submit validates and appends a routing step on behalf of the capability.
func (s *Service) Submit(ctx context.Context, cap Capability, params SubmitParams) (Record, error) {
	if params.LetterID == "" {
		return Record{}, fmt.Errorf("%w: letter id required", ErrValidation)
	}
	if strings.TrimSpace(params.Message) == "" {
		return Record{}, fmt.Errorf("%w: message required", ErrValidation)
	}

	letter, err := s.letters.GetInfo(ctx, params.LetterID)
	if err != nil {
		return Record{}, err
	}
	if letter.IsDeleted {
		return Record{}, fmt.Errorf("%w: letter is deleted", ErrValidation)
	}

	chain, err := s.repo.ChainByLetter(ctx, params.LetterID)
	if err != nil {
		return Record{}, err
	}

	if err := EvaluateSubmit(cap, chain, letter); err != nil {
		return Record{}, err
	}
	if err := ValidateNext(chain, params.Status, params.RecipientID); err != nil {
		return Record{}, err
	}

	var parentID *string
	if tail, ok := CurrentTail(chain); ok {
		id := tail.ID
		parentID = &id
	}

	return s.repo.Create(ctx, CreateParams{
		LetterID:    params.LetterID,
		ParentID:    parentID,
		SubmitterID: cap.UserID,
		RecipientID: params.RecipientID,
		Message:     params.Message,
		Status:      params.Status,
	})
}

// Timeline assembles the display timeline for a letter's chain. Any role in
// the letter module's allowed set may view, independent of submit rules.
func (s *Service) Timeline(ctx context.Context, cap Capability, letterID string) (Timeline, error) {
	if !CanView(cap.RoleID) {
		return Timeline{}, ErrPermissionDenied
	}

	letter, err := s.letters.GetInfo(ctx, letterID)
	if err != nil {
		return Timeline{}, err
	}
	chain, err := s.repo.ChainByLetter(ctx, letterID)
	if err != nil {
		return Timeline{}, err
	}
	return BuildTimeline(letter, chain), nil
}

// PendingForUser lists the chains currently awaiting action from the
// capability's user. The dean is excluded from this view by rule.
func (s *Service) PendingForUser(ctx context.Context, cap Capability) ([]ChainSummary, error) {
	if !CanListPending(cap) {
		return nil, ErrPermissionDenied
	}
	return s.repo.PendingForRecipient(ctx, cap.UserID)
}

// Vocabulary returns the status catalogue for selector rendering.
func (s *Service) Vocabulary(ctx context.Context) ([]StatusInfo, error) {
	return s.repo.StatusVocabulary(ctx)
}
