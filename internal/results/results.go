// Package results turns the gateway's aggregated vote counts into ranked
// per-category tables for the administrator view.
package results

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var (
	ErrSummaryUnavailable   = errors.New("summary unavailable")
	ErrGatewayNotConfigured = errors.New("results gateway url not configured")
	ErrInvalidGatewayURL    = errors.New("invalid results gateway url")
)

// Fetcher retrieves a summary from the tally gateway
type Fetcher interface {
	ResultsFull(ctx context.Context, pollID string) (*models.Summary, error)
}

// Load fetches the summary for pollID. Every failure is reported as
// ErrSummaryUnavailable wrapping the underlying cause.
func Load(ctx context.Context, f Fetcher, pollID string) (*models.Summary, error) {
	summary, err := f.ResultsFull(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSummaryUnavailable, err)
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: empty response", ErrSummaryUnavailable)
	}

	for categoryID, counts := range summary.Counts {
		for personID, n := range counts {
			if n < 0 {
				return nil, fmt.Errorf("%w: negative count for %s/%s", ErrSummaryUnavailable, categoryID, personID)
			}
		}
	}

	if summary.FetchedAt.IsZero() {
		summary.FetchedAt = time.Now().UTC()
	}
	return summary, nil
}

// Rank builds one table per catalog category, in catalog order.
// Entries are ordered by count descending; equal counts keep catalog listing
// order, and ids missing from the catalog follow known people sorted by id.
func Rank(catalog *models.Catalog, summary *models.Summary) []models.RankedCategory {
	tables := make([]models.RankedCategory, 0, len(catalog.Categories))

	for _, cat := range catalog.Categories {
		table := models.RankedCategory{
			CategoryID: cat.ID,
			Name:       cat.Name,
			Entries:    []models.RankedEntry{},
		}

		var counts map[string]int
		if summary != nil {
			counts = summary.Counts[cat.ID]
		}

		for personID, n := range counts {
			table.Entries = append(table.Entries, models.RankedEntry{
				PersonID: personID,
				Name:     catalog.PersonName(personID),
				Count:    n,
			})
		}

		sort.Slice(table.Entries, func(i, j int) bool {
			a, b := table.Entries[i], table.Entries[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			pa, pb := catalog.PersonPosition(a.PersonID), catalog.PersonPosition(b.PersonID)
			switch {
			case pa >= 0 && pb >= 0:
				return pa < pb
			case pa >= 0:
				return true
			case pb >= 0:
				return false
			}
			return a.PersonID < b.PersonID
		})

		for i := range table.Entries {
			table.Entries[i].Rank = i + 1
		}

		tables = append(tables, table)
	}

	return tables
}
