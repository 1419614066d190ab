package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider exposes the active product catalog.
type Provider interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

// Config holds catalog source settings.
type Config struct {
	Path string `env:"CATALOG_PATH" envDefault:"catalog.yaml"`
}

type memoryProvider struct {
	mu      sync.RWMutex
	catalog *Catalog
}

// NewMemoryProvider returns a Provider serving a deep copy of cat.
// Panics if cat is nil so misconfiguration surfaces at startup.
func NewMemoryProvider(cat *Catalog) Provider {
	if cat == nil {
		panic("catalog: memory provider requires a catalog")
	}
	return &memoryProvider{catalog: cat.Clone()}
}

func (p *memoryProvider) Catalog(ctx context.Context) (*Catalog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.catalog.Clone(), nil
}

// FileProvider reads a YAML catalog from disk on every call.
type FileProvider struct {
	path string
}

// NewFileProvider returns a provider reading the catalog at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// NewFileProviderFromConfig builds a FileProvider from Config.
func NewFileProviderFromConfig(cfg Config) *FileProvider {
	return NewFileProvider(cfg.Path)
}

func (p *FileProvider) Catalog(ctx context.Context) (*Catalog, error) {
	if p.path == "" {
		return nil, errors.Join(ErrFailedToLoad, ErrPathNotProvided)
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoad, err)
	}

	return Parse(data)
}

// document is the on-disk shape: plans are listed, not keyed.
type document struct {
	Catalog struct {
		Name          string `yaml:"name"`
		EffectiveDate string `yaml:"effective_date"`
		Plans         []Plan `yaml:"plans"`
	} `yaml:"catalog"`
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrFailedToParse, err)
	}
	if len(doc.Catalog.Plans) == 0 && doc.Catalog.Name == "" {
		return nil, ErrCatalogNotDefined
	}

	cat := &Catalog{
		Name:  doc.Catalog.Name,
		Plans: make(map[string]Plan, len(doc.Catalog.Plans)),
	}

	if doc.Catalog.EffectiveDate != "" {
		ts, err := parseDate(doc.Catalog.EffectiveDate)
		if err != nil {
			return nil, errors.Join(ErrFailedToParse, err)
		}
		cat.EffectiveDate = ts
	}

	for _, p := range doc.Catalog.Plans {
		if _, dup := cat.Plans[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, p.Name)
		}
		cat.Plans[p.Name] = p
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	return cat, nil
}

func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid effective date %q: %w", s, err)
	}
	return ts.UTC(), nil
}
