package payload

import (
	"errors"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var ErrUnauthenticated = errors.New("no verified token")

// TokenSource is the part of a session the builder reads
type TokenSource interface {
	IsVerified() bool
	Token() string
}

// SelectionSource is the part of a ballot the builder reads
type SelectionSource interface {
	Catalog() *models.Catalog
	Selections(categoryID string) []string
}

// Build derives the vote request from the current session and ballot.
// Categories follow catalog display order, person IDs follow the order
// they were selected in.
func Build(pollID string, sess TokenSource, ballot SelectionSource) (models.SubmissionPayload, error) {
	if !sess.IsVerified() || sess.Token() == "" {
		return models.SubmissionPayload{}, ErrUnauthenticated
	}

	categories := ballot.Catalog().Categories
	selections := make([]models.Selection, 0, len(categories))
	for _, c := range categories {
		ids := ballot.Selections(c.ID)
		if ids == nil {
			ids = []string{}
		}
		selections = append(selections, models.Selection{
			CategoryID: c.ID,
			PersonIDs:  ids,
		})
	}

	return models.SubmissionPayload{
		PollID:     pollID,
		Token:      sess.Token(),
		Selections: selections,
	}, nil
}
