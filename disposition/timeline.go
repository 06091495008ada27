package disposition

import "time"

// TimelineEntry is one rendered step of a chain.
type TimelineEntry struct {
	SubmitterName     string
	SubmitterPosition string
	RecipientName     string
	RecipientPosition string
	Message           string
	StatusLabel       string
	Color             string
	Timestamp         time.Time
}

// Party identifies the person a timeline points at.
type Party struct {
	UserID   string
	Name     string
	Position string
}

// Timeline is the view model for a letter's routing history.
type Timeline struct {
	LetterID           string
	Subject            string
	Entries            []TimelineEntry
	CurrentState       Status
	CurrentStateLabel  string
	CurrentResponsible Party
	LastMessage        string
	Closed             bool
}

// BuildTimeline orders a chain into a displayable timeline. Ordering is
// strictly creation order; entries are never re-sorted by timestamp alone
// since timestamps within a chain may collide.
func BuildTimeline(letter LetterInfo, chain Chain) Timeline {
	entries := make([]TimelineEntry, 0, len(chain))
	for _, rec := range chain {
		entries = append(entries, TimelineEntry{
			SubmitterName:     rec.SubmitterName,
			SubmitterPosition: rec.SubmitterPosition,
			RecipientName:     rec.RecipientName,
			RecipientPosition: rec.RecipientPosition,
			Message:           rec.Message,
			StatusLabel:       rec.Status.Label(),
			Color:             rec.Status.Color(),
			Timestamp:         rec.CreatedAt,
		})
	}

	state := CurrentState(chain)
	tl := Timeline{
		LetterID:          letter.ID,
		Subject:           letter.Subject,
		Entries:           entries,
		CurrentState:      state,
		CurrentStateLabel: state.Label(),
		Closed:            state.Terminal(),
	}

	tail, ok := CurrentTail(chain)
	switch {
	case !ok:
		// No routing yet: the archivist who filed the letter holds it.
		tl.CurrentResponsible = Party{UserID: letter.ArchivistID}
	case tail.RecipientID == nil:
		// Terminal step names no recipient; responsibility rests with the
		// closer for display purposes.
		tl.CurrentResponsible = Party{
			UserID:   tail.SubmitterID,
			Name:     tail.SubmitterName,
			Position: tail.SubmitterPosition,
		}
	default:
		tl.CurrentResponsible = Party{
			UserID:   *tail.RecipientID,
			Name:     tail.RecipientName,
			Position: tail.RecipientPosition,
		}
	}
	if ok {
		tl.LastMessage = tail.Message
	}

	return tl
}
