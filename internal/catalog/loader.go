package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

var (
	ErrEmptyCatalog     = errors.New("catalog has no categories")
	ErrDuplicateID      = errors.New("duplicate id")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidPerson    = errors.New("invalid person")
	ErrUnsupportedInput = errors.New("unsupported catalog format")
)

// Loader reads the static category and person tables.
// A source is either a local path or an http(s) URL; the format is
// chosen by extension (.json, .yaml, .yml), defaulting to JSON.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a new catalog loader
func NewLoader() *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient overrides the client used for URL sources
func (l *Loader) WithHTTPClient(c *http.Client) *Loader {
	l.httpClient = c
	return l
}

// Load reads both tables and returns the ordered catalog
func (l *Loader) Load(ctx context.Context, categoriesSrc, peopleSrc string) (*models.Catalog, error) {
	slog.Info("loading catalog", "categories", categoriesSrc, "people", peopleSrc)

	var categories []models.Category
	if err := l.decode(ctx, categoriesSrc, &categories); err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	var people []models.Person
	if err := l.decode(ctx, peopleSrc, &people); err != nil {
		return nil, fmt.Errorf("failed to load people: %w", err)
	}

	cat, err := Build(categories, people)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog loaded", "categories", len(cat.Categories), "people", len(cat.People))
	return cat, nil
}

// Build validates the raw tables and orders categories by display order.
// Ties keep the order they were listed in.
func Build(categories []models.Category, people []models.Person) (*models.Catalog, error) {
	if len(categories) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]bool, len(categories))
	for i, c := range categories {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidCategory, i)
		}
		if c.MaxSelections < 1 {
			return nil, fmt.Errorf("%w: %s has maxSelections %d", ErrInvalidCategory, c.ID, c.MaxSelections)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: category %s", ErrDuplicateID, c.ID)
		}
		seen[c.ID] = true
	}

	seen = make(map[string]bool, len(people))
	for i, p := range people {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidPerson, i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: person %s", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true
	}

	ordered := make([]models.Category, len(categories))
	copy(ordered, categories)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	listed := make([]models.Person, len(people))
	copy(listed, people)

	return models.NewCatalog(ordered, listed), nil
}

func (l *Loader) decode(ctx context.Context, src string, v interface{}) error {
	data, name, err := l.read(ctx, src)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedInput, name)
	}
	return nil
}

// read returns the raw bytes and the name used to pick a decoder
func (l *Loader) read(ctx context.Context, src string) ([]byte, string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read file: %w", err)
		}
		return data, src, nil
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, src)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return data, path.Base(u.Path), nil
}
