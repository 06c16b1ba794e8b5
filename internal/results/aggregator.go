package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/internal/storage"
	"github.com/terra-clan/ballot-kiosk/pkg/tally"
)

// Aggregator serves the administrator results view
type Aggregator struct {
	pollID     string
	catalog    *models.Catalog
	settings   storage.Repository
	cache      Cache
	ttl        time.Duration
	defaultURL string
	newFetcher func(baseURL string) Fetcher
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithCache sets the display cache
func WithCache(c Cache) Option {
	return func(a *Aggregator) {
		a.cache = c
	}
}

// WithTTL sets how long a fetched summary is served from cache
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.ttl = ttl
	}
}

// WithDefaultGatewayURL is used while no URL has been saved in settings
func WithDefaultGatewayURL(u string) Option {
	return func(a *Aggregator) {
		a.defaultURL = tally.NormalizeBaseURL(u)
	}
}

// WithFetcherFactory overrides how gateway clients are built
func WithFetcherFactory(fn func(baseURL string) Fetcher) Option {
	return func(a *Aggregator) {
		a.newFetcher = fn
	}
}

// NewAggregator creates an Aggregator. Without WithCache every view is fetched.
func NewAggregator(pollID string, catalog *models.Catalog, settings storage.Repository, opts ...Option) *Aggregator {
	a := &Aggregator{
		pollID:   pollID,
		catalog:  catalog,
		settings: settings,
		cache:    noCache{},
		ttl:      15 * time.Second,
		newFetcher: func(baseURL string) Fetcher {
			return tally.NewClient(baseURL, tally.WithTimeout(10*time.Second))
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// View returns the ranked results. refresh skips the cache.
func (a *Aggregator) View(ctx context.Context, refresh bool) (*models.ResultsView, error) {
	baseURL, err := a.GatewayURL(ctx)
	if err != nil {
		return nil, err
	}

	key := a.pollID + "@" + baseURL

	if !refresh {
		summary, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("results cache read failed", "error", err)
		} else if ok {
			return a.view(summary, true), nil
		}
	}

	summary, err := Load(ctx, a.newFetcher(baseURL), a.pollID)
	if err != nil {
		slog.Warn("failed to load results", "gateway", baseURL, "error", err)
		return nil, err
	}

	if err := a.cache.Set(ctx, key, summary, a.ttl); err != nil {
		slog.Warn("results cache write failed", "error", err)
	}

	return a.view(summary, false), nil
}

func (a *Aggregator) view(summary *models.Summary, cached bool) *models.ResultsView {
	return &models.ResultsView{
		PollID:     a.pollID,
		TotalVotes: summary.TotalVotes,
		FetchedAt:  summary.FetchedAt,
		Cached:     cached,
		Categories: Rank(a.catalog, summary),
	}
}

// GatewayURL returns the saved gateway base URL, falling back to the
// configured default
func (a *Aggregator) GatewayURL(ctx context.Context) (string, error) {
	u, err := a.settings.GetSetting(ctx, storage.KeyResultsGatewayURL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to read results gateway url: %w", err)
	}
	if u == "" {
		u = a.defaultURL
	}
	if u == "" {
		return "", ErrGatewayNotConfigured
	}
	return u, nil
}

// SetGatewayURL validates, normalizes and saves the gateway base URL
func (a *Aggregator) SetGatewayURL(ctx context.Context, raw string) (string, error) {
	u := tally.NormalizeBaseURL(raw)
	if u == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidGatewayURL)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGatewayURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: must be an absolute http(s) url", ErrInvalidGatewayURL)
	}

	if err := a.settings.PutSetting(ctx, storage.KeyResultsGatewayURL, u); err != nil {
		return "", err
	}

	slog.Info("results gateway url updated", "url", u)
	return u, nil
}
