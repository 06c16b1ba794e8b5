package models

// SessionState represents the current state of the voter's token session
type SessionState string

const (
	SessionUnset    SessionState = "unset"    // No verified token
	SessionVerified SessionState = "verified" // Token accepted by the gateway, ballot open
	SessionConsumed SessionState = "consumed" // Ballot submitted with this token
	SessionExpired  SessionState = "expired"  // Poll closed while the session was live
)

// IsTerminal returns true if the session can only be left by verifying a new token
func (s SessionState) IsTerminal() bool {
	return s == SessionConsumed || s == SessionExpired
}

// VerifyTokenRequest is the body of the kiosk token verification endpoint
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// SelectNomineeRequest is the body of the kiosk selection endpoint
type SelectNomineeRequest struct {
	PersonID string `json:"personId"`
}
