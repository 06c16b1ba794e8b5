package session

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var ErrNotVerified = errors.New("session is not verified")

// Normalize trims surrounding whitespace and upper-cases the token.
// Tokens are treated as case-insensitive; the gateway always receives
// the upper-case form.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Session holds the single verified voter token.
// Every transition into Verified mints a new epoch so that responses
// started under an older session can be recognised and dropped.
type Session struct {
	state models.SessionState
	token string
	epoch string
}

// New returns an unset session
func New() *Session {
	return &Session{state: models.SessionUnset}
}

// State returns the current session state
func (s *Session) State() models.SessionState {
	return s.state
}

// IsVerified returns true if a token is verified and unused
func (s *Session) IsVerified() bool {
	return s.state == models.SessionVerified
}

// Token returns the verified token, or "" when not verified
func (s *Session) Token() string {
	return s.token
}

// Epoch identifies the current verified session, "" when not verified
func (s *Session) Epoch() string {
	return s.epoch
}

// Verify records a token the gateway accepted and returns the new epoch
func (s *Session) Verify(token string) string {
	s.state = models.SessionVerified
	s.token = token
	s.epoch = uuid.NewString()
	return s.epoch
}

// Invalidate drops the token after a rejection or connectivity failure
func (s *Session) Invalidate() {
	s.state = models.SessionUnset
	s.clear()
}

// MarkConsumed ends a verified session after a successful submission
func (s *Session) MarkConsumed() error {
	if s.state != models.SessionVerified {
		return ErrNotVerified
	}
	s.state = models.SessionConsumed
	s.clear()
	return nil
}

// Expire ends the session because the poll closed
func (s *Session) Expire() {
	s.state = models.SessionExpired
	s.clear()
}

func (s *Session) clear() {
	s.token = ""
	s.epoch = ""
}
