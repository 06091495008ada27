package disposition

import (
	"errors"
	"strings"
)

// Role codes as assigned by the access-control reference table.
const (
	RoleCoordinator       = 1 // administrative coordinator
	RoleLeadership        = 2 // faculty leadership, includes the dean
	RoleInboundArchivist  = 3
	RoleOutboundArchivist = 4 // never a routing participant
	RoleGeneral           = 5
)

// PositionDean is the organizational position of the top-level authority.
// Only the dean may open a chain on a letter that requires initial review.
const PositionDean = "dean"

var (
	// ErrPermissionDenied signals the caller is not the current actor, the
	// chain is terminal, or the caller already acted on the chain.
	ErrPermissionDenied = errors.New("disposition: permission denied")
	// ErrMissingPosition signals the caller holds no organizational position
	// and therefore cannot participate in routing at all. Kept distinct from
	// ErrPermissionDenied so callers can surface the corrective instruction.
	ErrMissingPosition = errors.New("disposition: user has no organizational position")
)

// Capability is the tuple the permission evaluator decides over. Position
// is nil for users without an organizational position on file.
type Capability struct {
	UserID   string
	RoleID   int
	Position *string
}

// IsTopAuthority reports whether the capability belongs to the dean.
func (c Capability) IsTopAuthority() bool {
	return c.RoleID == RoleLeadership && c.Position != nil &&
		strings.EqualFold(strings.TrimSpace(*c.Position), PositionDean)
}

func (c Capability) hasPosition() bool {
	return c.Position != nil && strings.TrimSpace(*c.Position) != ""
}

// EvaluateSubmit decides whether the capability may append a record to the
// chain. Rules, in order: a user without a position is always blocked; an
// empty chain may only be opened by the dean when the letter requires the
// dean's initial review; otherwise only the chain's current actor may act,
// once, while the chain is open.
func EvaluateSubmit(cap Capability, chain Chain, letter LetterInfo) error {
	if !cap.hasPosition() {
		return ErrMissingPosition
	}

	if len(chain) == 0 {
		if cap.IsTopAuthority() && letter.NeedsDeanReview {
			return nil
		}
		return ErrPermissionDenied
	}

	if IsTerminal(chain) {
		return ErrPermissionDenied
	}
	if CurrentActor(chain) != cap.UserID {
		return ErrPermissionDenied
	}
	if HasUserActed(chain, cap.UserID) {
		return ErrPermissionDenied
	}
	return nil
}

// CanView reports whether the role may read chains and timelines. Viewing
// is independent of the submit rules.
func CanView(roleID int) bool {
	switch roleID {
	case RoleCoordinator, RoleLeadership, RoleInboundArchivist, RoleOutboundArchivist, RoleGeneral:
		return true
	default:
		return false
	}
}

// CanListPending reports whether the capability may access the pending
// dispositions list. The dean is excluded even though the leadership role
// would otherwise qualify: the dean only ever opens chains via the detail
// view. Business rule carried over as-is; flagged for product confirmation.
func CanListPending(cap Capability) bool {
	if cap.IsTopAuthority() {
		return false
	}
	return CanView(cap.RoleID)
}
