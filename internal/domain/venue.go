package domain

// Venue is the auth/venue context required before the sync engine may
// subscribe. Any blank identifier means "not ready", not an error.
type Venue struct {
	CompanyID   string
	VenueID     string
	Name        string
	MaxCapacity int
}

func (v Venue) Ready() bool {
	return v.CompanyID != "" && v.VenueID != ""
}

// SessionKey addresses one session document in the remote store.
type SessionKey struct {
	CompanyID string
	VenueID   string
	ShiftDate string
}
