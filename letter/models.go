package letter

import "time"

// DeletionStatus is the lifecycle of a deletion request.
type DeletionStatus string

const (
	DeletionRequested DeletionStatus = "REQUESTED"
	DeletionApproved  DeletionStatus = "APPROVED"
	DeletionRejected  DeletionStatus = "REJECTED"
)

// Letter mirrors the letters table columns touched by the routing engine
// and the deletion workflow.
type Letter struct {
	ID              string
	ReferenceNo     string
	AgendaNo        *int
	Subject         string
	Sender          string
	ArchivistID     string
	AttachmentKey   *string
	NeedsDeanReview bool
	IsDeleted       bool
	ReceivedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeletionRequest is a single request-then-resolve record. Unlike a
// disposition chain it never grows; it is resolved in place, and resolved
// rows are retained for audit.
type DeletionRequest struct {
	ID          string
	LetterID    string
	RequesterID string
	Reason      string
	Status      DeletionStatus
	ResolvedBy  *string
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}
