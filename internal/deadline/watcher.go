package deadline

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

// ClosedReason is shown to the voter once the poll has ended
const ClosedReason = "voting has ended"

// StatusSource reports the gateway's poll window
type StatusSource interface {
	Status(ctx context.Context) (*models.PollStatus, error)
}

// Closer is the voting controller as seen by the watcher
type Closer interface {
	Close(reason string)
	Closed() bool
}

// Watcher polls the gateway status and closes voting once the poll is over
type Watcher struct {
	source   StatusSource
	closer   Closer
	interval time.Duration
}

// NewWatcher creates a new deadline watcher
func NewWatcher(source StatusSource, closer Closer, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Watcher{
		source:   source,
		closer:   closer,
		interval: interval,
	}
}

// Start begins the watcher in a goroutine. The returned channel is closed
// when the watcher exits.
func (w *Watcher) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()
	return done
}

// run is the main loop; it exits on cancel or after voting is closed
func (w *Watcher) run(ctx context.Context) {
	slog.Info("deadline watcher started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	if w.check(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("deadline watcher stopped")
			return
		case <-ticker.C:
			if w.check(ctx) {
				return
			}
		}
	}
}

// check reports whether voting is closed after this cycle
func (w *Watcher) check(ctx context.Context) bool {
	if w.closer.Closed() {
		return true
	}

	status, err := w.source.Status(ctx)
	if err != nil {
		slog.Warn("failed to get poll status", "error", err)
		return false
	}

	if !status.IsOver() {
		slog.Debug("poll still open", "now", status.Now, "end_at", status.EndAt)
		return false
	}

	slog.Info("poll is over, closing voting",
		"now", status.Now,
		"end_at", status.EndAt,
		"closed", status.Closed,
	)
	w.closer.Close(ClosedReason)
	return true
}
