package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/tasklenslab/tasklens/internal/notion"
	"go.uber.org/zap"
)

// PageGetter is the point-lookup slice of the API client.
type PageGetter interface {
	GetPage(ctx context.Context, pageID string) (notion.Page, error)
}

// ResolverConfig carries the dependencies of a Resolver.
type ResolverConfig struct {
	Client      PageGetter
	NIDProperty string
	Logger      *zap.Logger
}

// Resolver turns opaque relation references into the numeric identifier of
// the referenced record. Lookups are memoized for the lifetime of one
// ingestion run; concurrent lookups of the same reference share a single
// fetch, first writer wins.
type Resolver struct {
	client      PageGetter
	nidProperty string
	logger      *zap.Logger

	mu      sync.Mutex
	entries map[string]*resolution
}

type resolution struct {
	once sync.Once
	nid  *int64
	ok   bool
}

// NewResolver validates the configuration and returns a ready resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Client == nil {
		return nil, errors.New("page getter is required")
	}
	if cfg.NIDProperty == "" {
		return nil, errors.New("nid property name is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:      cfg.Client,
		nidProperty: cfg.NIDProperty,
		logger:      logger,
		entries:     make(map[string]*resolution),
	}, nil
}

// ResolveNID returns the referenced record's numeric identifier, or nil when
// the reference is empty or the lookup fails. Failures are logged, never
// fatal, and are not memoized so a later lookup may still succeed.
func (r *Resolver) ResolveNID(ctx context.Context, pageID string) *int64 {
	if pageID == "" {
		return nil
	}

	r.mu.Lock()
	entry, exists := r.entries[pageID]
	if !exists {
		entry = &resolution{}
		r.entries[pageID] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		page, err := r.client.GetPage(ctx, pageID)
		if err != nil {
			r.logger.Warn("relation resolution failed",
				zap.String("page_id", pageID),
				zap.Error(err))
			r.mu.Lock()
			delete(r.entries, pageID)
			r.mu.Unlock()
			return
		}
		if property, ok := page.Properties[r.nidProperty]; ok && property.UniqueID != nil {
			entry.nid = property.UniqueID.Number
		}
		entry.ok = true
	})

	if !entry.ok {
		return nil
	}
	return entry.nid
}
