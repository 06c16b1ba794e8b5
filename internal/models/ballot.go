package models

import "time"

// Selection is one category's entry in a submission
type Selection struct {
	CategoryID string   `json:"categoryId"`
	PersonIDs  []string `json:"personIds"`
}

// SubmissionPayload is the wire body of POST /vote
type SubmissionPayload struct {
	PollID     string      `json:"pollId"`
	Token      string      `json:"token"`
	Selections []Selection `json:"selections"`
}

// CategorySelection describes one category's current picks for display
type CategorySelection struct {
	CategoryID    string   `json:"categoryId"`
	Name          string   `json:"name"`
	MaxSelections int      `json:"maxSelections"`
	PersonIDs     []string `json:"personIds"`
	PersonNames   []string `json:"personNames"`
}

// BallotSnapshot is the full observable state of the controller.
// It is what the rendering layer draws and what the event stream pushes.
type BallotSnapshot struct {
	Session         SessionState        `json:"session"`
	Closed          bool                `json:"closed"`
	Categories      []CategorySelection `json:"categories"`
	CompletedCount  int                 `json:"completedCount"`
	TotalCategories int                 `json:"totalCategories"`
	Complete        bool                `json:"complete"`
	Eligible        bool                `json:"eligible"`
	Submitting      bool                `json:"submitting"`
	StatusMessage   string              `json:"statusMessage,omitempty"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Summary is the aggregated count map returned by GET /results/full
type Summary struct {
	TotalVotes int                       `json:"totalVotes"`
	Counts     map[string]map[string]int `json:"counts"`
	FetchedAt  time.Time                 `json:"fetchedAt"`
}

// RankedEntry is one row of a category results table
type RankedEntry struct {
	Rank     int    `json:"rank"`
	PersonID string `json:"personId"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

// RankedCategory is a category results table, entries ordered by count
type RankedCategory struct {
	CategoryID string        `json:"categoryId"`
	Name       string        `json:"name"`
	Entries    []RankedEntry `json:"entries"`
}

// ResultsView is the administrator results response
type ResultsView struct {
	PollID     string           `json:"pollId"`
	TotalVotes int              `json:"totalVotes"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	Cached     bool             `json:"cached"`
	Categories []RankedCategory `json:"categories"`
}

// PollStatus is the gateway's view of the voting window
type PollStatus struct {
	Now    time.Time `json:"now"`
	EndAt  time.Time `json:"endAt"`
	Closed bool      `json:"closed"`
}

// IsOver returns true once the poll no longer accepts ballots
func (s PollStatus) IsOver() bool {
	if s.Closed {
		return true
	}
	return !s.EndAt.IsZero() && !s.Now.Before(s.EndAt)
}
