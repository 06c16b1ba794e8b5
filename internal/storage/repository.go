package storage

import (
	"context"
	"errors"
)

// KeyResultsGatewayURL is the administrator-configured base URL the results
// view fetches summaries from
const KeyResultsGatewayURL = "results_gateway_url"

var ErrNotFound = errors.New("setting not found")

// Repository defines the interface for kiosk settings persistence
type Repository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
