package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskRow is the indexed projection of a cached task record. The CSV cache
// stays authoritative; the index exists so the dashboard can filter without
// re-parsing the whole file per request.
type TaskRow struct {
	UID        string `gorm:"primaryKey;column:uid"`
	NID        *int64 `gorm:"column:nid"`
	Name       string
	Status     string `gorm:"index"`
	Priority   string `gorm:"index"`
	Due        time.Time
	Started    time.Time
	Completed  time.Time
	Created    time.Time
	Updated    time.Time
	ParentNID  *int64
	IsProject  bool
	TagsJSON   string `gorm:"column:tags_json"`
	BodyLength int
}

func (TaskRow) TableName() string {
	return "task_rows"
}

// Tags decodes the indexed tag list.
func (r TaskRow) Tags() []string {
	if r.TagsJSON == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

// Index is the queryable SQLite mirror of the cache.
type Index struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open establishes the SQLite connection and performs schema migration.
func Open(path string, logger *zap.Logger) (*Index, error) {
	if path == "" {
		return nil, errors.New("index database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&TaskRow{}); err != nil {
		return nil, fmt.Errorf("migrate index schema: %w", err)
	}

	logger.Info("index database initialized", zap.String("path", path))
	return &Index{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Refresh replaces the index contents with the given merged cache snapshot
// in one transaction.
func (i *Index) Refresh(ctx context.Context, records []store.TaskRecord) error {
	rows := make([]TaskRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, toRow(record))
	}

	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TaskRow{}).Error; err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("insert index rows: %w", err)
		}
		return nil
	})
}

func toRow(record store.TaskRecord) TaskRow {
	tags := append(append([]string{}, record.Tags...), record.ParentTags...)
	tagsJSON := ""
	if len(tags) > 0 {
		if encoded, err := json.Marshal(tags); err == nil {
			tagsJSON = string(encoded)
		}
	}
	return TaskRow{
		UID:        record.UID,
		NID:        record.NID,
		Name:       record.Name,
		Status:     record.Status,
		Priority:   record.Priority,
		Due:        record.DueAt(),
		Started:    parseOrZero(record.Started),
		Completed:  record.CompletedAt(),
		Created:    record.CreatedAt(),
		Updated:    record.UpdatedAt(),
		ParentNID:  record.ParentNID,
		IsProject:  len(record.ChildrenUIDs) > 0,
		TagsJSON:   tagsJSON,
		BodyLength: len(record.BodyContent),
	}
}

func parseOrZero(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// Filter narrows a task query. Zero values mean no constraint.
type Filter struct {
	Status  string
	Tag     string
	Overdue bool
	Now     time.Time
}

// Tasks returns indexed rows matching the filter, soonest due first with
// undated rows last.
func (i *Index) Tasks(ctx context.Context, filter Filter) ([]TaskRow, error) {
	query := i.db.WithContext(ctx).Model(&TaskRow{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array; match the quoted element.
		query = query.Where("tags_json LIKE ?", "%"+`"`+strings.ReplaceAll(filter.Tag, `"`, "")+`"`+"%")
	}
	if filter.Overdue {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		query = query.Where("due > ? AND due < ?", time.Time{}, now)
	}

	var rows []TaskRow
	if err := query.Order("CASE WHEN due > '0001-01-01 00:00:00+00:00' THEN 0 ELSE 1 END, due ASC, nid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return rows, nil
}

// StatusCount is one row of the status summary.
type StatusCount struct {
	Status string
	Count  int64
}

// Summary aggregates task counts by status.
func (i *Index) Summary(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := i.db.WithContext(ctx).Model(&TaskRow{}).
		Select("status, count(*) as count").
		Group("status").
		Order("count DESC").
		Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("summarize index: %w", err)
	}
	return counts, nil
}
