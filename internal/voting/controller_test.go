package voting

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/ballot-kiosk/internal/ballot"
	"github.com/terra-clan/ballot-kiosk/internal/events"
	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/pkg/tally"
	"github.com/terra-clan/ballot-kiosk/pkg/tally/tallytest"
)

func testCatalog() *models.Catalog {
	return models.NewCatalog(
		[]models.Category{
			{ID: "A", Name: "Category A", Order: 1, MaxSelections: 1},
			{ID: "B", Name: "Category B", Order: 2, MaxSelections: 2},
		},
		[]models.Person{{ID: "p1", Name: "Ada"}, {ID: "p2", Name: "Bob"}, {ID: "p3", Name: "Cem"}},
	)
}

func newTestController(t *testing.T) (*Controller, *tallytest.Server) {
	t.Helper()
	gw := tallytest.NewServer()
	t.Cleanup(gw.Close)
	return NewController("2026-awards", testCatalog(), tally.NewClient(gw.URL), nil), gw
}

func fillBallot(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Select("A", "p1"))
	require.NoError(t, c.Select("B", "p1"))
	require.NoError(t, c.Select("B", "p2"))
}

// funcGateway lets a test control each gateway call
type funcGateway struct {
	verify func(ctx context.Context, pollID, token string) error
	vote   func(ctx context.Context, p models.SubmissionPayload) error
}

func (g *funcGateway) Verify(ctx context.Context, pollID, token string) error {
	if g.verify == nil {
		return nil
	}
	return g.verify(ctx, pollID, token)
}

func (g *funcGateway) Vote(ctx context.Context, p models.SubmissionPayload) error {
	if g.vote == nil {
		return nil
	}
	return g.vote(ctx, p)
}

func TestVerifyNormalizesAndResets(t *testing.T) {
	c, gw := newTestController(t)

	require.NoError(t, c.Verify(context.Background(), " abc123 "))
	assert.Equal(t, "ABC123", gw.LastVerification())

	fillBallot(t, c)
	require.True(t, c.IsSubmissionEligible())

	// a second verification starts a clean ballot
	require.NoError(t, c.Verify(context.Background(), "next"))
	snap := c.Snapshot()
	assert.Equal(t, models.SessionVerified, snap.Session)
	assert.Equal(t, 0, snap.CompletedCount)
	assert.False(t, snap.Eligible)
}

func TestVerifyEmptyToken(t *testing.T) {
	c, gw := newTestController(t)

	err := c.Verify(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, gw.Verifications)
	assert.Equal(t, models.SessionUnset, c.Snapshot().Session)
}

func TestVerifyRejectedKeepsBallot(t *testing.T) {
	c, gw := newTestController(t)
	require.NoError(t, c.Verify(context.Background(), "good"))
	fillBallot(t, c)

	gw.OnVerify(func(pollID, token string) tallytest.Response {
		return tallytest.Reject(http.StatusForbidden, "token already used")
	})
	err := c.Verify(context.Background(), "bad")
	require.ErrorIs(t, err, ErrRejected)

	snap := c.Snapshot()
	assert.Equal(t, models.SessionUnset, snap.Session)
	assert.Equal(t, "token already used", snap.StatusMessage)
	// selections survive, but the gate is closed without a verified token
	assert.True(t, snap.Complete)
	assert.False(t, snap.Eligible)
	assert.False(t, c.IsSubmissionEligible())
}

func TestVerifyConnectivityFailure(t *testing.T) {
	gw := tallytest.NewServer()
	url := gw.URL
	gw.Close()

	c := NewController("poll", testCatalog(), tally.NewClient(url, tally.WithTimeout(time.Second)), nil)
	err := c.Verify(context.Background(), "abc")
	require.ErrorIs(t, err, ErrConnectivity)

	snap := c.Snapshot()
	assert.Equal(t, models.SessionUnset, snap.Session)
	assert.Equal(t, msgVerifyUnreachable, snap.StatusMessage)
}

func TestSelectRequiresVerifiedSession(t *testing.T) {
	c, _ := newTestController(t)
	assert.ErrorIs(t, c.Select("A", "p1"), ErrUnauthenticated)
	assert.ErrorIs(t, c.Deselect("A", "p1"), ErrUnauthenticated)
}

func TestSelectCapacitySurfacesMessage(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	err := c.Select("A", "p3")
	require.ErrorIs(t, err, ballot.ErrCapacityExceeded)

	snap := c.Snapshot()
	assert.Equal(t, err.Error(), snap.StatusMessage)
	assert.Equal(t, []string{"p1"}, snap.Categories[0].PersonIDs)
	assert.Equal(t, 2, snap.CompletedCount)
	assert.True(t, snap.Eligible)
}

func TestSubmitRejectedKeepsSession(t *testing.T) {
	c, gw := newTestController(t)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	gw.OnVote(func(p models.SubmissionPayload) tallytest.Response {
		return tallytest.Reject(http.StatusConflict, "token used")
	})

	err := c.Submit(context.Background())
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "token used", err.Error())

	snap := c.Snapshot()
	assert.Equal(t, models.SessionVerified, snap.Session)
	assert.Equal(t, "token used", snap.StatusMessage)
	assert.Equal(t, []string{"p1", "p2"}, snap.Categories[1].PersonIDs)
	assert.False(t, snap.Submitting)
	assert.True(t, snap.Eligible)
}

func TestSubmitSuccessConsumesSession(t *testing.T) {
	c, gw := newTestController(t)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	require.NoError(t, c.Submit(context.Background()))

	require.Equal(t, 1, gw.VoteCount())
	assert.Equal(t, models.SubmissionPayload{
		PollID: "2026-awards",
		Token:  "ABC",
		Selections: []models.Selection{
			{CategoryID: "A", PersonIDs: []string{"p1"}},
			{CategoryID: "B", PersonIDs: []string{"p1", "p2"}},
		},
	}, gw.Votes[0])

	snap := c.Snapshot()
	assert.Equal(t, models.SessionConsumed, snap.Session)
	assert.Equal(t, 0, snap.CompletedCount)
	assert.False(t, c.IsSubmissionEligible())
	assert.Equal(t, msgBallotReceived, snap.StatusMessage)

	// nothing can be edited or resubmitted until a new token is verified
	assert.ErrorIs(t, c.Select("A", "p1"), ErrUnauthenticated)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrUnauthenticated)

	require.NoError(t, c.Verify(context.Background(), "other"))
	assert.Equal(t, models.SessionVerified, c.Snapshot().Session)
}

func TestSubmitPreconditions(t *testing.T) {
	c, gw := newTestController(t)

	assert.ErrorIs(t, c.Submit(context.Background()), ErrUnauthenticated)

	require.NoError(t, c.Verify(context.Background(), "abc"))
	require.NoError(t, c.Select("A", "p1"))
	assert.ErrorIs(t, c.Submit(context.Background()), ErrIncomplete)
	assert.Equal(t, 0, gw.VoteCount())
}

func TestSubmitConnectivityFailureKeepsState(t *testing.T) {
	gw := &funcGateway{
		vote: func(ctx context.Context, p models.SubmissionPayload) error {
			return tally.ErrConnectivity
		},
	}
	c := NewController("poll", testCatalog(), gw, nil)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	require.ErrorIs(t, c.Submit(context.Background()), ErrConnectivity)

	snap := c.Snapshot()
	assert.Equal(t, models.SessionVerified, snap.Session)
	assert.Equal(t, msgSubmitUnreachable, snap.StatusMessage)
	assert.True(t, snap.Eligible)
	assert.False(t, snap.Submitting)
}

func TestAtMostOneSubmissionInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	gw := &funcGateway{
		vote: func(ctx context.Context, p models.SubmissionPayload) error {
			mu.Lock()
			calls++
			mu.Unlock()
			close(started)
			<-release
			return nil
		},
	}
	c := NewController("poll", testCatalog(), gw, nil)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-started

	assert.True(t, c.Snapshot().Submitting)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.False(t, c.Snapshot().Submitting)
}

func TestStaleVerificationIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	gw := &funcGateway{
		verify: func(ctx context.Context, pollID, token string) error {
			if token == "OLD" {
				close(firstStarted)
				<-releaseFirst
				return &tally.RejectedError{StatusCode: http.StatusForbidden, Message: "old token rejected"}
			}
			return nil
		},
	}
	c := NewController("poll", testCatalog(), gw, nil)

	done := make(chan error, 1)
	go func() { done <- c.Verify(context.Background(), "old") }()
	<-firstStarted

	require.NoError(t, c.Verify(context.Background(), "new"))
	close(releaseFirst)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	snap := c.Snapshot()
	assert.Equal(t, models.SessionVerified, snap.Session)
	assert.Equal(t, msgTokenAccepted, snap.StatusMessage)
}

func TestStaleSubmissionDoesNotConsumeNewSession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	gw := &funcGateway{
		vote: func(ctx context.Context, p models.SubmissionPayload) error {
			close(started)
			<-release
			return nil
		},
	}
	c := NewController("poll", testCatalog(), gw, nil)
	require.NoError(t, c.Verify(context.Background(), "first"))
	fillBallot(t, c)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()
	<-started

	require.NoError(t, c.Verify(context.Background(), "second"))
	require.NoError(t, c.Select("A", "p3"))
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleResponse)
	snap := c.Snapshot()
	assert.Equal(t, models.SessionVerified, snap.Session)
	assert.Equal(t, []string{"p3"}, snap.Categories[0].PersonIDs)
	assert.False(t, snap.Submitting)
}

func TestCloseExpiresSession(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	fillBallot(t, c)

	c.Close("")
	c.Close("ignored")

	snap := c.Snapshot()
	assert.True(t, snap.Closed)
	assert.Equal(t, models.SessionExpired, snap.Session)
	assert.Equal(t, msgDefaultCloseReason, snap.StatusMessage)
	assert.Equal(t, 0, snap.CompletedCount)
	assert.False(t, c.IsSubmissionEligible())

	assert.ErrorIs(t, c.Verify(context.Background(), "abc"), ErrPollClosed)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrPollClosed)
	assert.ErrorIs(t, c.Select("A", "p1"), ErrPollClosed)
}

func TestMutationsArePublished(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	c := NewController("poll", testCatalog(), &funcGateway{}, hub)
	require.NoError(t, c.Verify(context.Background(), "abc"))
	drain(ch)

	require.NoError(t, c.Select("A", "p1"))
	snap := <-ch
	assert.Equal(t, 1, snap.CompletedCount)
	assert.False(t, snap.Eligible)

	require.NoError(t, c.Select("B", "p2"))
	snap = <-ch
	assert.True(t, snap.Complete)
	assert.True(t, snap.Eligible)

	require.NoError(t, c.Deselect("B", "p2"))
	snap = <-ch
	assert.False(t, snap.Eligible)
}

func drain(ch <-chan models.BallotSnapshot) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestSentinelTaxonomy(t *testing.T) {
	assert.True(t, errors.Is(&tally.RejectedError{Message: "x"}, ErrRejected))
	assert.False(t, errors.Is(ErrConnectivity, ErrRejected))
}
