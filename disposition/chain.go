package disposition

import "errors"

// Chain is a letter's disposition records ordered oldest to newest by Seq.
type Chain []Record

var (
	// ErrValidation signals malformed input to a mutator, such as a missing
	// recipient for a non-terminal status.
	ErrValidation = errors.New("disposition: validation failed")
	// ErrConflict signals the referenced tail is stale or terminal; the
	// caller must refetch the chain and re-evaluate before retrying.
	ErrConflict = errors.New("disposition: chain tail conflict")
	// ErrNotFound signals the referenced letter or chain does not exist.
	ErrNotFound = errors.New("disposition: not found")
)

// CurrentTail returns the chain's most recently created record. The second
// return is false for an empty chain.
func CurrentTail(chain Chain) (Record, bool) {
	if len(chain) == 0 {
		return Record{}, false
	}
	return chain[len(chain)-1], true
}

// CurrentState returns the status of the tail record, or
// StatusNotDispositioned for an empty chain.
func CurrentState(chain Chain) Status {
	tail, ok := CurrentTail(chain)
	if !ok {
		return StatusNotDispositioned
	}
	return tail.Status
}

// CurrentActor returns the user currently allowed to extend the chain: the
// tail's recipient. It returns empty for an empty or terminal chain.
func CurrentActor(chain Chain) string {
	tail, ok := CurrentTail(chain)
	if !ok || tail.Status.Terminal() || tail.RecipientID == nil {
		return ""
	}
	return *tail.RecipientID
}

// IsTerminal reports whether the chain has been closed by a terminal record.
func IsTerminal(chain Chain) bool {
	return CurrentState(chain).Terminal()
}

// HasUserActed reports whether the user already submitted a record anywhere
// in the chain. A user acts at most once per chain.
func HasUserActed(chain Chain, userID string) bool {
	for _, rec := range chain {
		if rec.SubmitterID == userID {
			return true
		}
	}
	return false
}

// ValidateNext checks that appending a record with the given status and
// recipient is a legal transition for the chain. It does not check who is
// submitting; that is the permission evaluator's job.
func ValidateNext(chain Chain, next Status, recipientID *string) error {
	if !next.Valid() || next == StatusNotDispositioned {
		return ErrValidation
	}
	if IsTerminal(chain) {
		return ErrConflict
	}
	if next == CurrentState(chain) {
		return ErrValidation
	}
	if next.Terminal() {
		if recipientID != nil && *recipientID != "" {
			return ErrValidation
		}
		return nil
	}
	if recipientID == nil || *recipientID == "" {
		return ErrValidation
	}
	return nil
}
