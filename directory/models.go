package directory

// Profile captures the subset of user data exposed to the routing screens:
// enough to render the forward-to selector and the timeline display names.
type Profile struct {
	ID       string
	NIP      string
	FullName string
	Email    string
	RoleID   int
	Position *string
	Active   bool
}

// HasPosition reports whether the user holds an organizational position and
// is therefore eligible as a routing participant.
func (p Profile) HasPosition() bool {
	return p.Position != nil && *p.Position != ""
}
