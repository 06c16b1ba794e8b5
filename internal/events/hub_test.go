package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

func TestPublishKeepsLatest(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(models.BallotSnapshot{CompletedCount: 1})
	h.Publish(models.BallotSnapshot{CompletedCount: 2})
	h.Publish(models.BallotSnapshot{CompletedCount: 3})

	snap := <-ch
	assert.Equal(t, 3, snap.CompletedCount)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
}

func TestCancelDetaches(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	require.Equal(t, 1, h.Len())

	cancel()
	cancel()
	assert.Equal(t, 0, h.Len())

	_, open := <-ch
	assert.False(t, open)

	// publishing with no subscribers is a no-op
	h.Publish(models.BallotSnapshot{})
}

func TestFanOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Publish(models.BallotSnapshot{Eligible: true})
	assert.True(t, (<-a).Eligible)
	assert.True(t, (<-b).Eligible)
}
