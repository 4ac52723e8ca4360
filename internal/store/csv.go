package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Column order of the cache file. Readers are lenient: a cache written with
// fewer columns loads with the missing fields null-filled.
var columns = []string{
	"UID", "NID", "Name", "Body Content", "Status", "Started", "Completed",
	"Due", "Updated Time", "Priority", "Files & Media", "Created",
	"Parent UID", "Parent NID", "Children UIDs", "Children NIDs",
	"Tags", "Parent Tags", "Comments",
}

var noOpLogger = zap.NewNop()

// Store owns the durable cache file: loading, merging and the atomic
// rewrite. Nothing else touches the file.
type Store struct {
	path     string
	jsonPath string
	logger   *zap.Logger
}

// StoreConfig carries the dependencies of a Store.
type StoreConfig struct {
	Path     string
	JSONPath string
	Logger   *zap.Logger
}

// NewStore validates the configuration and returns a ready store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{path: cfg.Path, jsonPath: cfg.JSONPath, logger: logger}, nil
}

// Path returns the location of the cache file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache; a missing file is an empty cache, not an error.
func (s *Store) Load() ([]TaskRecord, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer file.Close()
	return readRecords(file)
}

// Sync merges fresh records into the cache and rewrites it atomically,
// deduplicating by UID with the last occurrence winning. If the file changed
// underneath the read (which single-writer discipline should preclude), the
// read-merge-write cycle is retried once before the conflict surfaces.
func (s *Store) Sync(fresh []TaskRecord) ([]TaskRecord, error) {
	merged, err := s.syncOnce(fresh)
	if err == nil {
		return merged, nil
	}
	if !errors.Is(err, errConcurrentRewrite) {
		return nil, err
	}
	s.logger.Warn("cache changed during rewrite, retrying merge cycle", zap.String("path", s.path))
	return s.syncOnce(fresh)
}

var errConcurrentRewrite = errors.New("cache file modified during merge")

func (s *Store) syncOnce(fresh []TaskRecord) ([]TaskRecord, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}
	loadedAt, _ := modTime(s.path)

	merged := Merge(existing, fresh)

	// Another writer between the read and the rewrite would be clobbered by
	// the rename below; detect it while the temp file is still unswapped.
	if !loadedAt.IsZero() {
		if current, err := modTime(s.path); err == nil && !current.Equal(loadedAt) {
			return nil, errConcurrentRewrite
		}
	}

	if err := s.write(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// write persists records through a temp file and rename so a crashed run
// never leaves a half-written cache behind.
func (s *Store) write(records []TaskRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".pages-*.csv")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(marshalRow(record)); err != nil {
			tmp.Close()
			return fmt.Errorf("write record %s: %w", record.UID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}

	if s.jsonPath != "" {
		if err := s.writeJSONMirror(records); err != nil {
			s.logger.Warn("json mirror write failed", zap.Error(err))
		}
	}
	return nil
}

type jsonRecord struct {
	UID           string   `json:"uid"`
	NID           *int64   `json:"nid"`
	Name          string   `json:"name"`
	BodyContent   string   `json:"body_content"`
	Status        string   `json:"status"`
	Started       string   `json:"started"`
	Completed     string   `json:"completed"`
	Due           string   `json:"due"`
	UpdatedTime   string   `json:"updated_time"`
	Priority      string   `json:"priority"`
	FilesAndMedia []string `json:"files_and_media"`
	Created       string   `json:"created"`
	ParentUID     string   `json:"parent_uid"`
	ParentNID     *int64   `json:"parent_nid"`
	ChildrenUIDs  []string `json:"children_uids"`
	ChildrenNIDs  []*int64 `json:"children_nids"`
	Tags          []string `json:"tags"`
	ParentTags    []string `json:"parent_tags"`
	Comments      string   `json:"comments"`
}

func (s *Store) writeJSONMirror(records []TaskRecord) error {
	out := make([]jsonRecord, 0, len(records))
	for _, r := range records {
		out = append(out, jsonRecord(r))
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmpName := s.jsonPath + ".tmp"
	if err := os.WriteFile(tmpName, encoded, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, s.jsonPath)
}

func marshalRow(record TaskRecord) []string {
	return []string{
		record.UID,
		formatNID(record.NID),
		record.Name,
		record.BodyContent,
		record.Status,
		record.Started,
		record.Completed,
		record.Due,
		record.UpdatedTime,
		record.Priority,
		marshalList(record.FilesAndMedia),
		record.Created,
		record.ParentUID,
		formatNID(record.ParentNID),
		marshalList(record.ChildrenUIDs),
		marshalNIDList(record.ChildrenNIDs),
		marshalList(record.Tags),
		marshalList(record.ParentTags),
		record.Comments,
	}
}

func readRecords(reader io.Reader) ([]TaskRecord, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	var records []TaskRecord
	for {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		records = append(records, TaskRecord{
			UID:           field("UID"),
			NID:           parseNID(field("NID")),
			Name:          field("Name"),
			BodyContent:   field("Body Content"),
			Status:        field("Status"),
			Started:       field("Started"),
			Completed:     field("Completed"),
			Due:           field("Due"),
			UpdatedTime:   field("Updated Time"),
			Priority:      field("Priority"),
			FilesAndMedia: parseList(field("Files & Media")),
			Created:       field("Created"),
			ParentUID:     field("Parent UID"),
			ParentNID:     parseNID(field("Parent NID")),
			ChildrenUIDs:  parseList(field("Children UIDs")),
			ChildrenNIDs:  parseNIDList(field("Children NIDs")),
			Tags:          parseList(field("Tags")),
			ParentTags:    parseList(field("Parent Tags")),
			Comments:      field("Comments"),
		})
	}
	return records, nil
}

// List-valued columns are stored as JSON arrays inside the CSV cell.

func marshalList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func parseList(value string) []string {
	if value == "" || value == "[]" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(value), &values); err != nil {
		return nil
	}
	return values
}

func marshalNIDList(values []*int64) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func parseNIDList(value string) []*int64 {
	if value == "" || value == "[]" {
		return nil
	}
	var values []*int64
	if err := json.Unmarshal([]byte(value), &values); err != nil {
		return nil
	}
	return values
}

func formatNID(value *int64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatInt(*value, 10)
}

func parseNID(value string) *int64 {
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
