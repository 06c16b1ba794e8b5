package tally

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/pkg/tally/tallytest"
)

func TestVerify(t *testing.T) {
	gw := tallytest.NewServer()
	defer gw.Close()

	c := NewClient(gw.URL + "//")
	assert.Equal(t, gw.URL, c.BaseURL())

	require.NoError(t, c.Verify(context.Background(), "poll", "ABC"))
	assert.Equal(t, "ABC", gw.LastVerification())

	gw.OnVerify(func(pollID, token string) tallytest.Response {
		return tallytest.Reject(http.StatusForbidden, "token used")
	})
	err := c.Verify(context.Background(), "poll", "ABC")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "token used", err.Error())

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusForbidden, rej.StatusCode)
}

func TestAcceptRules(t *testing.T) {
	tests := []struct {
		name    string
		resp    tallytest.Response
		wantErr bool
		wantMsg string
	}{
		{"ok", tallytest.OK, false, ""},
		{"2xx but ok false", tallytest.Reject(http.StatusOK, "nope"), true, "nope"},
		{"non-2xx without message", tallytest.Response{Status: http.StatusBadGateway, Body: map[string]bool{"ok": true}}, true, defaultVoteMessage},
		{"non-2xx with message", tallytest.Reject(http.StatusConflict, "token used"), true, "token used"},
		{"unparsable body", tallytest.Response{Status: http.StatusOK, Body: "<html>"}, true, defaultVoteMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := tallytest.NewServer()
			defer gw.Close()
			gw.OnVote(func(p models.SubmissionPayload) tallytest.Response { return tt.resp })

			err := NewClient(gw.URL).Vote(context.Background(), models.SubmissionPayload{PollID: "p", Token: "T"})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrRejected)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestVoteSendsPayload(t *testing.T) {
	gw := tallytest.NewServer()
	defer gw.Close()

	p := models.SubmissionPayload{
		PollID: "2026-awards",
		Token:  "T",
		Selections: []models.Selection{
			{CategoryID: "a", PersonIDs: []string{"p2", "p1"}},
		},
	}
	require.NoError(t, NewClient(gw.URL).Vote(context.Background(), p))
	require.Equal(t, 1, gw.VoteCount())
	assert.Equal(t, p, gw.Votes[0])
}

func TestConnectivityFailure(t *testing.T) {
	gw := tallytest.NewServer()
	url := gw.URL
	gw.Close()

	c := NewClient(url, WithTimeout(time.Second))
	err := c.Verify(context.Background(), "poll", "T")
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.NotErrorIs(t, err, ErrRejected)

	_, err = c.ResultsFull(context.Background(), "poll")
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestStatus(t *testing.T) {
	gw := tallytest.NewServer()
	defer gw.Close()

	now := time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC)
	end := now.Add(2 * time.Hour)
	gw.OnStatus(func() tallytest.Response { return tallytest.StatusResponse(now, end, false) })

	st, err := NewClient(gw.URL).Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Now.Equal(now))
	assert.True(t, st.EndAt.Equal(end))
	assert.False(t, st.IsOver())

	gw.OnStatus(func() tallytest.Response { return tallytest.Reject(http.StatusInternalServerError, "") })
	_, err = NewClient(gw.URL).Status(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestResultsFull(t *testing.T) {
	gw := tallytest.NewServer()
	defer gw.Close()

	var gotPoll string
	gw.OnResults(func(pollID string) tallytest.Response {
		gotPoll = pollID
		return tallytest.ResultsResponse(8, map[string]map[string]int{"catA": {"p1": 5, "p2": 3}})
	})

	sum, err := NewClient(gw.URL).ResultsFull(context.Background(), "2026 awards&x")
	require.NoError(t, err)
	assert.Equal(t, "2026 awards&x", gotPoll)
	assert.Equal(t, 8, sum.TotalVotes)
	assert.Equal(t, 5, sum.Counts["catA"]["p1"])
}

func TestResultsFullErrors(t *testing.T) {
	gw := tallytest.NewServer()
	defer gw.Close()
	c := NewClient(gw.URL)

	gw.OnResults(func(string) tallytest.Response {
		return tallytest.Response{Status: http.StatusServiceUnavailable, Body: "down"}
	})
	_, err := c.ResultsFull(context.Background(), "p")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "results unavailable (HTTP 503)", err.Error())

	gw.OnResults(func(string) tallytest.Response {
		return tallytest.Response{Status: http.StatusOK, Body: map[string]interface{}{"ok": true, "counts": "bad"}}
	})
	_, err = c.ResultsFull(context.Background(), "p")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	gw.OnResults(func(string) tallytest.Response {
		return tallytest.Response{Status: http.StatusOK, Body: map[string]interface{}{"ok": true}}
	})
	sum, err := c.ResultsFull(context.Background(), "p")
	require.NoError(t, err)
	assert.NotNil(t, sum.Counts)
}

func TestPollStatusIsOver(t *testing.T) {
	now := time.Now()
	assert.True(t, models.PollStatus{Closed: true}.IsOver())
	assert.True(t, models.PollStatus{Now: now, EndAt: now}.IsOver())
	assert.False(t, models.PollStatus{Now: now, EndAt: now.Add(time.Second)}.IsOver())
	assert.False(t, models.PollStatus{Now: now}.IsOver())
}
