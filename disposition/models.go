package disposition

import "time"

// Record is one step in the routing of a letter: a forward from one person
// to the next with a message and a status. Records are append-only; a chain
// is the ordered set of records sharing a letter id, linked root-to-tail
// via ParentID.
type Record struct {
	ID          string
	LetterID    string
	ParentID    *string
	SubmitterID string
	RecipientID *string
	Message     string
	Status      Status
	// Seq is the per-chain creation counter and the authoritative ordering;
	// timestamps may collide, Seq never does.
	Seq       int
	CreatedAt time.Time

	// Display attributes joined at read time, never stored on the record.
	SubmitterName     string
	SubmitterPosition string
	RecipientName     string
	RecipientPosition string
}

// ChainSummary is one row of the "pending dispositions for me" list: a
// letter whose chain tail currently awaits action from the viewer.
type ChainSummary struct {
	LetterID        string
	AgendaNo        int
	Subject         string
	ReceivedAt      *time.Time
	TailID          string
	SubmitterName   string
	Message         string
	Status          Status
	DispositionedAt time.Time
}

// CreateParams enumerates the write fields for appending a record.
type CreateParams struct {
	LetterID    string
	ParentID    *string
	SubmitterID string
	RecipientID *string
	Message     string
	Status      Status
}

// LetterInfo is the slice of the letter row the routing engine needs. The
// letter package owns the full model; keeping this local avoids a cycle.
type LetterInfo struct {
	ID              string
	AgendaNo        int
	Subject         string
	ArchivistID     string
	NeedsDeanReview bool
	IsDeleted       bool
	ReceivedAt      *time.Time
}
