package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func nid(v int64) *int64 { return &v }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(StoreConfig{
		Path:     filepath.Join(dir, "pages.csv"),
		JSONPath: filepath.Join(dir, "pages.json"),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestLoadMissingFileReturnsEmptyCache(t *testing.T) {
	s := newTestStore(t)
	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records for missing cache, got %d", len(records))
	}
}

func TestSyncRoundTripsRecords(t *testing.T) {
	s := newTestStore(t)

	fresh := []TaskRecord{
		{
			UID:           "uid-1",
			NID:           nid(42),
			Name:          "Write release notes",
			BodyContent:   "line one\nline two",
			Status:        "3 To Do",
			Due:           "2026-09-01",
			UpdatedTime:   "2026-08-20T10:00:00.000Z",
			Priority:      "High (1wk)",
			FilesAndMedia: []string{"notes.txt"},
			ParentNID:     nid(7),
			ChildrenNIDs:  []*int64{nid(43), nil},
			Tags:          []string{"release", "docs"},
		},
		{UID: "uid-2", Name: "Untracked"},
	}

	if _, err := s.Sync(fresh); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded))
	}
	got := loaded[0]
	if got.UID != "uid-1" || got.Name != "Write release notes" {
		t.Fatalf("unexpected first record %+v", got)
	}
	if got.NID == nil || *got.NID != 42 {
		t.Fatalf("NID not preserved: %v", got.NID)
	}
	if got.BodyContent != "line one\nline two" {
		t.Fatalf("multiline body not preserved: %q", got.BodyContent)
	}
	if len(got.ChildrenNIDs) != 2 || got.ChildrenNIDs[0] == nil || *got.ChildrenNIDs[0] != 43 || got.ChildrenNIDs[1] != nil {
		t.Fatalf("children nids not preserved: %v", got.ChildrenNIDs)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "release" {
		t.Fatalf("tags not preserved: %v", got.Tags)
	}
}

func TestSyncWritesJSONMirror(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Sync([]TaskRecord{{UID: "uid-1", Name: "Task"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	raw, err := os.ReadFile(s.jsonPath)
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	var mirrored []map[string]any
	if err := json.Unmarshal(raw, &mirrored); err != nil {
		t.Fatalf("mirror is not valid json: %v", err)
	}
	if len(mirrored) != 1 || mirrored[0]["uid"] != "uid-1" {
		t.Fatalf("unexpected mirror contents: %v", mirrored)
	}
}

func TestSyncMergesWithExistingCache(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Sync([]TaskRecord{
		{UID: "uid-1", Name: "Old name", UpdatedTime: "2026-08-01T00:00:00.000Z"},
		{UID: "uid-2", Name: "Stays"},
	}); err != nil {
		t.Fatalf("initial Sync: %v", err)
	}

	merged, err := s.Sync([]TaskRecord{
		{UID: "uid-1", Name: "New name", UpdatedTime: "2026-08-21T00:00:00.000Z"},
		{UID: "uid-3", Name: "Added"},
	})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 records after merge, got %d", len(merged))
	}

	byUID := ByUID(merged)
	if byUID["uid-1"].Name != "New name" {
		t.Fatalf("fresh record did not win: %+v", byUID["uid-1"])
	}
	if _, ok := byUID["uid-2"]; !ok {
		t.Fatal("untouched record dropped by merge")
	}
}

func TestLoadToleratesMissingColumns(t *testing.T) {
	s := newTestStore(t)
	partial := strings.Join([]string{
		"UID,Name,Status",
		"uid-1,Legacy task,3 To Do",
	}, "\n")
	if err := os.WriteFile(s.path, []byte(partial), 0o644); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.UID != "uid-1" || got.Name != "Legacy task" || got.Status != "3 To Do" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.NID != nil || got.Tags != nil || got.BodyContent != "" {
		t.Fatalf("missing columns not null-filled: %+v", got)
	}
}

func TestSyncRewriteIsByteStable(t *testing.T) {
	s := newTestStore(t)
	records := []TaskRecord{
		{UID: "uid-1", NID: nid(1), Name: "One", Tags: []string{"a"}},
		{UID: "uid-2", Name: "Two"},
	}
	if _, err := s.Sync(records); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	first, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}

	if _, err := s.Sync(records); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	second, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("re-syncing identical records changed the cache bytes")
	}
}
