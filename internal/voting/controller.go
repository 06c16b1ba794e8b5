package voting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/ballot-kiosk/internal/ballot"
	"github.com/terra-clan/ballot-kiosk/internal/events"
	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/internal/payload"
	"github.com/terra-clan/ballot-kiosk/internal/session"
	"github.com/terra-clan/ballot-kiosk/pkg/tally"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("a token is required")
	ErrUnauthenticated    = payload.ErrUnauthenticated
	ErrIncomplete         = errors.New("select at least one nominee in every category")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrPollClosed         = errors.New("voting is closed")
	ErrStaleResponse      = errors.New("response belongs to a superseded session")
	ErrRejected           = tally.ErrRejected
	ErrConnectivity       = tally.ErrConnectivity
)

const (
	msgChecking           = "checking token..."
	msgTokenAccepted      = "token accepted, you can start voting"
	msgVerifyUnreachable  = "connection error, the tally gateway is unreachable"
	msgSending            = "sending ballot..."
	msgBallotReceived     = "ballot received, thank you"
	msgSubmitUnreachable  = "connection error, please try again"
	msgTokenRequired      = "a token is required"
	msgDefaultCloseReason = "voting has ended"
)

// Gateway is the part of the tally client the controller calls
type Gateway interface {
	Verify(ctx context.Context, pollID, token string) error
	Vote(ctx context.Context, p models.SubmissionPayload) error
}

// Controller owns the voter's ballot and token session.
// State is guarded by mu, which is never held across a gateway call.
type Controller struct {
	mu sync.Mutex

	pollID  string
	gateway Gateway
	hub     *events.Hub
	ballot  *ballot.State
	session *session.Session

	closed        bool
	submitting    bool
	verifyAttempt string
	statusMessage string
	updatedAt     time.Time
}

// NewController creates a controller with an empty ballot and no token.
// hub may be nil when nobody renders the state.
func NewController(pollID string, catalog *models.Catalog, gw Gateway, hub *events.Hub) *Controller {
	c := &Controller{
		pollID:    pollID,
		gateway:   gw,
		hub:       hub,
		ballot:    ballot.NewState(catalog),
		session:   session.New(),
		updatedAt: time.Now().UTC(),
	}
	c.ballot.Observe(func(ballot.Change) {
		c.publishLocked()
	})
	return c
}

// PollID returns the poll ballots are submitted to
func (c *Controller) PollID() string {
	return c.pollID
}

// Catalog returns the loaded categories and people
func (c *Controller) Catalog() *models.Catalog {
	return c.ballot.Catalog()
}

// Snapshot returns the current observable state
func (c *Controller) Snapshot() models.BallotSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// IsSubmissionEligible is true iff a token is verified, every category
// has a pick and the poll is still open
func (c *Controller) IsSubmissionEligible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eligibleLocked()
}

// Closed reports whether the poll has been closed
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Select adds a nominee to a category
func (c *Controller) Select(categoryID, personID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}

	if err := c.ballot.Select(categoryID, personID); err != nil {
		if errors.Is(err, ballot.ErrCapacityExceeded) {
			c.setStatusLocked(err.Error())
		}
		return err
	}
	return nil
}

// Deselect removes a nominee from a category
func (c *Controller) Deselect(categoryID, personID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}

	c.ballot.Deselect(categoryID, personID)
	return nil
}

// Verify checks a raw token with the gateway. On success the ballot starts
// over empty; on failure the session is dropped and the ballot left alone.
// A response arriving after a newer Verify call started is discarded.
func (c *Controller) Verify(ctx context.Context, raw string) error {
	token := session.Normalize(raw)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrPollClosed
	}
	if token == "" {
		c.setStatusLocked(msgTokenRequired)
		c.mu.Unlock()
		return ErrInvalidInput
	}
	attempt := uuid.NewString()
	c.verifyAttempt = attempt
	c.setStatusLocked(msgChecking)
	c.mu.Unlock()

	err := c.gateway.Verify(ctx, c.pollID, token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.verifyAttempt != attempt {
		slog.Debug("discarding superseded verification response", "attempt", attempt)
		return ErrStaleResponse
	}
	c.verifyAttempt = ""

	if err != nil {
		c.session.Invalidate()
		var rej *tally.RejectedError
		switch {
		case errors.As(err, &rej):
			c.setStatusLocked(rej.Message)
		case errors.Is(err, tally.ErrConnectivity):
			c.setStatusLocked(msgVerifyUnreachable)
		default:
			c.setStatusLocked(err.Error())
		}
		slog.Info("token verification failed", "error", err)
		return err
	}

	epoch := c.session.Verify(token)
	c.statusMessage = msgTokenAccepted
	c.ballot.Reset()
	slog.Info("token verified", "epoch", epoch)
	return nil
}

// Submit sends the ballot. Only one submission may be in flight; the guard
// is released after the response has been applied. A rejection keeps the
// session and selections so the voter can retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrPollClosed
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	p, err := payload.Build(c.pollID, c.session, c.ballot)
	if err != nil {
		c.setStatusLocked("verify a token first")
		c.mu.Unlock()
		return err
	}
	if !c.ballot.IsComplete() {
		c.setStatusLocked(ErrIncomplete.Error())
		c.mu.Unlock()
		return ErrIncomplete
	}
	epoch := c.session.Epoch()
	c.submitting = true
	c.setStatusLocked(msgSending)
	c.mu.Unlock()

	err = c.gateway.Vote(ctx, p)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if c.session.Epoch() != epoch {
		slog.Warn("discarding submission response for superseded session", "epoch", epoch)
		c.publishLocked()
		return ErrStaleResponse
	}

	if err != nil {
		var rej *tally.RejectedError
		switch {
		case errors.As(err, &rej):
			c.setStatusLocked(rej.Message)
		case errors.Is(err, tally.ErrConnectivity):
			c.setStatusLocked(msgSubmitUnreachable)
		default:
			c.setStatusLocked(err.Error())
		}
		slog.Info("ballot submission failed", "error", err)
		return err
	}

	if err := c.session.MarkConsumed(); err != nil {
		return err
	}
	c.statusMessage = msgBallotReceived
	c.ballot.Reset()
	slog.Info("ballot submitted", "poll_id", c.pollID)
	return nil
}

// Close ends voting: the session expires, the ballot is cleared and any
// pending response is discarded when it arrives
func (c *Controller) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if reason == "" {
		reason = msgDefaultCloseReason
	}

	c.closed = true
	c.verifyAttempt = ""
	c.session.Expire()
	c.statusMessage = reason
	c.ballot.Reset()
	slog.Info("voting closed", "reason", reason)
}

func (c *Controller) editableLocked() error {
	if c.closed {
		return ErrPollClosed
	}
	if !c.session.IsVerified() {
		return ErrUnauthenticated
	}
	return nil
}

func (c *Controller) eligibleLocked() bool {
	return !c.closed && c.session.IsVerified() && c.ballot.IsComplete()
}

func (c *Controller) setStatusLocked(msg string) {
	c.statusMessage = msg
	c.publishLocked()
}

func (c *Controller) snapshotLocked() models.BallotSnapshot {
	return models.BallotSnapshot{
		Session:         c.session.State(),
		Closed:          c.closed,
		Categories:      c.ballot.Describe(),
		CompletedCount:  c.ballot.CompletedCount(),
		TotalCategories: c.ballot.TotalCategories(),
		Complete:        c.ballot.IsComplete(),
		Eligible:        c.eligibleLocked(),
		Submitting:      c.submitting,
		StatusMessage:   c.statusMessage,
		UpdatedAt:       c.updatedAt,
	}
}

// publishLocked recomputes completion and eligibility and pushes them to
// subscribers
func (c *Controller) publishLocked() {
	c.updatedAt = time.Now().UTC()
	if c.hub == nil {
		return
	}
	c.hub.Publish(c.snapshotLocked())
}
