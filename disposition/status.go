package disposition

// Status is the closed vocabulary of disposition states. The numeric ids
// match the archive's reference table and must not be renumbered: archived
// chains reference them.
type Status int

const (
	// StatusNotDispositioned is the implicit state of a letter with no
	// disposition records. It is never stored on a record.
	StatusNotDispositioned Status = 1

	StatusToDeputyDean  Status = 2
	StatusToProgramHead Status = 3
	StatusToAdminStaff  Status = 4

	StatusAwaitingResponse Status = 5
	StatusNeedsFollowUp    Status = 7

	// StatusCompleted and StatusRejected are terminal: once a chain's tail
	// carries one of them no further record may be appended.
	StatusCompleted Status = 6
	StatusRejected  Status = 8
)

var statusLabels = map[Status]string{
	StatusNotDispositioned: "Not Yet Dispositioned",
	StatusToDeputyDean:     "Forwarded to Deputy Dean",
	StatusToProgramHead:    "Forwarded to Program Head",
	StatusToAdminStaff:     "Forwarded to Admin Staff",
	StatusAwaitingResponse: "Awaiting Stakeholder Response",
	StatusCompleted:        "Completed / Archived",
	StatusNeedsFollowUp:    "Needs Follow-up",
	StatusRejected:         "Rejected / Not Relevant",
}

// statusOrder fixes the catalogue order exposed to callers.
var statusOrder = []Status{
	StatusNotDispositioned,
	StatusToDeputyDean,
	StatusToProgramHead,
	StatusToAdminStaff,
	StatusAwaitingResponse,
	StatusCompleted,
	StatusNeedsFollowUp,
	StatusRejected,
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Terminal reports whether the status ends a chain permanently.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// RequiresRecipient reports whether a record with this status must name a
// recipient. Terminal statuses must not: the chain has nobody left to act.
func (s Status) RequiresRecipient() bool {
	return s.Valid() && s != StatusNotDispositioned && !s.Terminal()
}

// Color returns the rendering color for the status group: gray for the
// initial state, blue for forwards, orange for pending action, green for
// completion, red for rejection.
func (s Status) Color() string {
	switch s {
	case StatusNotDispositioned:
		return "gray"
	case StatusToDeputyDean, StatusToProgramHead, StatusToAdminStaff:
		return "blue"
	case StatusAwaitingResponse, StatusNeedsFollowUp:
		return "orange"
	case StatusCompleted:
		return "green"
	case StatusRejected:
		return "red"
	default:
		return "blue"
	}
}

// StatusInfo is the reference-data shape served to selectors.
type StatusInfo struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Vocabulary returns the full status catalogue in fixed order.
func Vocabulary() []StatusInfo {
	out := make([]StatusInfo, 0, len(statusOrder))
	for _, s := range statusOrder {
		out = append(out, StatusInfo{ID: int(s), Label: s.Label()})
	}
	return out
}
