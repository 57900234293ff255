package entity

// Session is the authenticated caller as vouched for by the gateway.
type Session struct {
	RepID          string
	OrganizationID string
	Role           Role
}

func (s Session) Valid() bool {
	return s.RepID != "" && s.OrganizationID != ""
}
