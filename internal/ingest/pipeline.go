package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tasklenslab/tasklens/internal/config"
	"github.com/tasklenslab/tasklens/internal/notion"
	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

var (
	errMissingClient     = errors.New("api client is required")
	errMissingAssembler  = errors.New("assembler is required")
	errMissingStore      = errors.New("cache store is required")
	errMissingDatabaseID = errors.New("database id is required")
)

// PipelineError is an operation-coded failure of an ingestion run.
type PipelineError struct {
	code string
	err  error
}

func (e *PipelineError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *PipelineError) Unwrap() error {
	return e.err
}

func (e *PipelineError) Code() string {
	return e.code
}

const (
	opPipelineNew = "ingest.pipeline.new"
	opSyncRun     = "ingest.sync_run"
)

func newPipelineError(operation, reason string, cause error) error {
	return &PipelineError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Lister is the database-listing slice of the API client.
type Lister interface {
	QueryDatabase(ctx context.Context, databaseID string, limit int) ([]notion.Page, error)
}

// CacheStore is the durable-table surface the pipeline drives. Only the
// pipeline's Run touches it; there are no concurrent writers.
type CacheStore interface {
	Load() ([]store.TaskRecord, error)
	Sync(fresh []store.TaskRecord) ([]store.TaskRecord, error)
}

// IndexRefresher mirrors the merged cache into the queryable index.
type IndexRefresher interface {
	Refresh(ctx context.Context, records []store.TaskRecord) error
}

// PipelineConfig carries the dependencies of a Pipeline.
type PipelineConfig struct {
	Client          Lister
	Assembler       *Assembler
	Store           CacheStore
	Index           IndexRefresher
	DatabaseID      string
	FetchLimit      int
	FreshnessWindow time.Duration
	Properties      config.PropertyNames
	Logger          *zap.Logger
}

// Pipeline drives one incremental ingestion run end to end: list, skip
// unchanged, assemble, merge, persist, refresh index.
type Pipeline struct {
	client          Lister
	assembler       *Assembler
	store           CacheStore
	index           IndexRefresher
	databaseID      string
	fetchLimit      int
	freshnessWindow time.Duration
	properties      config.PropertyNames
	logger          *zap.Logger
}

// NewPipeline validates the configuration and returns a ready pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, newPipelineError(opPipelineNew, "missing_client", errMissingClient)
	}
	if cfg.Assembler == nil {
		return nil, newPipelineError(opPipelineNew, "missing_assembler", errMissingAssembler)
	}
	if cfg.Store == nil {
		return nil, newPipelineError(opPipelineNew, "missing_store", errMissingStore)
	}
	if cfg.DatabaseID == "" {
		return nil, newPipelineError(opPipelineNew, "missing_database_id", errMissingDatabaseID)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client:          cfg.Client,
		assembler:       cfg.Assembler,
		store:           cfg.Store,
		index:           cfg.Index,
		databaseID:      cfg.DatabaseID,
		fetchLimit:      cfg.FetchLimit,
		freshnessWindow: cfg.FreshnessWindow,
		properties:      cfg.Properties,
		logger:          logger,
	}, nil
}

// RunSummary reports what one ingestion run did.
type RunSummary struct {
	RunID     string
	Listed    int
	Skipped   int
	Updated   int
	CacheSize int
}

// Run executes one ingestion run. A listing failure aborts before any store
// write so the previous cache survives untouched; a missing database is
// reported and degrades to an empty run. Per-record failures were already
// absorbed by the assembler.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	summary := RunSummary{RunID: runID}

	logger.Info("listing remote database",
		zap.String("database_id", p.databaseID),
		zap.Int("fetch_limit", p.fetchLimit))

	pages, err := p.client.QueryDatabase(ctx, p.databaseID, p.fetchLimit)
	if err != nil {
		if errors.Is(err, notion.ErrDatabaseNotFound) {
			logger.Error("database not found; check the database id and the integration's access",
				zap.String("database_id", p.databaseID))
			return summary, nil
		}
		return summary, newPipelineError(opSyncRun, "listing_failed", err)
	}
	summary.Listed = len(pages)

	if len(pages) > 0 {
		p.checkSchema(logger, pages[0])
	} else {
		logger.Warn("remote database is empty, nothing to verify or sync")
	}

	existing, err := p.store.Load()
	if err != nil {
		return summary, newPipelineError(opSyncRun, "cache_load_failed", err)
	}
	cached := store.ByUID(existing)

	var fresh []store.TaskRecord
	for _, page := range pages {
		if prior, ok := cached[page.ID]; ok && p.unchanged(prior.UpdatedTime, page.LastEditedTime) {
			summary.Skipped++
			continue
		}
		fresh = append(fresh, p.assembler.Assemble(ctx, page))
	}
	summary.Updated = len(fresh)

	if len(fresh) == 0 {
		summary.CacheSize = len(existing)
		logger.Info("no new or updated records", zap.Int("skipped", summary.Skipped))
		return summary, nil
	}

	merged, err := p.store.Sync(fresh)
	if err != nil {
		return summary, newPipelineError(opSyncRun, "cache_write_failed", err)
	}
	summary.CacheSize = len(merged)

	if p.index != nil {
		if err := p.index.Refresh(ctx, merged); err != nil {
			logger.Warn("index refresh failed; cache file is still authoritative", zap.Error(err))
		}
	}

	logger.Info("sync complete",
		zap.Int("listed", summary.Listed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("updated", summary.Updated),
		zap.Int("cache_size", summary.CacheSize))
	return summary, nil
}

// unchanged applies the change-detection policy: exact last-modified
// equality, optionally widened to a freshness window for installations with
// backend timestamp truncation.
func (p *Pipeline) unchanged(cachedStamp, remoteStamp string) bool {
	if cachedStamp == remoteStamp {
		return true
	}
	if p.freshnessWindow <= 0 {
		return false
	}
	cachedAt, cachedErr := time.Parse(time.RFC3339, cachedStamp)
	remoteAt, remoteErr := time.Parse(time.RFC3339, remoteStamp)
	if cachedErr != nil || remoteErr != nil {
		return false
	}
	delta := remoteAt.Sub(cachedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= p.freshnessWindow
}

// checkSchema warns about configured property names that the remote database
// does not actually carry, the usual symptom of renamed columns.
func (p *Pipeline) checkSchema(logger *zap.Logger, first notion.Page) {
	checks := []struct {
		label string
		name  string
	}{
		{"status", p.properties.Status},
		{"priority", p.properties.Priority},
		{"due", p.properties.Due},
		{"started", p.properties.Started},
		{"completed", p.properties.Completed},
		{"files_media", p.properties.FilesMedia},
		{"tags", p.properties.Tags},
		{"parent_tags", p.properties.ParentTags},
	}

	missing := 0
	for _, check := range checks {
		if _, ok := first.Properties[check.name]; !ok {
			logger.Warn("configured property not found in remote schema",
				zap.String("attribute", check.label),
				zap.String("property", check.name))
			missing++
		}
	}
	if missing == 0 {
		logger.Info("remote schema matches configured properties")
	}
}
