package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tasklenslab/tasklens/internal/store"
)

func nid(v int64) *int64 { return &v }

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "tasklens.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func indexRecords() []store.TaskRecord {
	return []store.TaskRecord{
		{
			UID: "uid-1", NID: nid(1), Name: "Overdue task",
			Status: "to do", Priority: "High (1wk)",
			Due:  "2026-08-01",
			Tags: []string{"infra"},
		},
		{
			UID: "uid-2", NID: nid(2), Name: "Future task",
			Status: "to do",
			Due:    "2026-12-01",
		},
		{
			UID: "uid-3", NID: nid(3), Name: "Container",
			Status:       "doing",
			ChildrenUIDs: []string{"uid-1"},
			ParentTags:   []string{"platform"},
		},
	}
}

func TestRefreshReplacesRows(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	rows, err := idx.Tasks(ctx, Filter{})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// a second refresh with fewer records must not leave stale rows behind
	if err := idx.Refresh(ctx, indexRecords()[:1]); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	rows, err = idx.Tasks(ctx, Filter{})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 1 || rows[0].UID != "uid-1" {
		t.Fatalf("stale rows after refresh: %+v", rows)
	}
}

func TestTasksStatusAndTagFilters(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rows, err := idx.Tasks(ctx, Filter{Status: "to do"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 to-do rows, got %d", len(rows))
	}

	rows, err = idx.Tasks(ctx, Filter{Tag: "infra"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 1 || rows[0].UID != "uid-1" {
		t.Fatalf("tag filter failed: %+v", rows)
	}

	// parent tags are searchable alongside direct tags
	rows, err = idx.Tasks(ctx, Filter{Tag: "platform"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 1 || rows[0].UID != "uid-3" {
		t.Fatalf("parent tag filter failed: %+v", rows)
	}
}

func TestTasksOverdueFilter(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	rows, err := idx.Tasks(ctx, Filter{Overdue: true, Now: now})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 1 || rows[0].UID != "uid-1" {
		t.Fatalf("overdue filter failed: %+v", rows)
	}
}

func TestTasksOrderDatedFirst(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rows, err := idx.Tasks(ctx, Filter{})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if rows[0].UID != "uid-1" || rows[1].UID != "uid-2" {
		t.Fatalf("dated rows not ordered by due date: %+v", rows)
	}
	if rows[2].UID != "uid-3" {
		t.Fatalf("undated row should sort last: %+v", rows)
	}
}

func TestSummaryGroupsByStatus(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	counts, err := idx.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	byStatus := map[string]int64{}
	for _, count := range counts {
		byStatus[count.Status] = count.Count
	}
	if byStatus["to do"] != 2 || byStatus["doing"] != 1 {
		t.Fatalf("unexpected counts %+v", byStatus)
	}
}

func TestRowProjection(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	if err := idx.Refresh(ctx, indexRecords()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rows, err := idx.Tasks(ctx, Filter{Status: "doing"})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if !row.IsProject {
		t.Fatal("record with children should index as a project")
	}
	tags := row.Tags()
	if len(tags) != 1 || tags[0] != "platform" {
		t.Fatalf("parent tags not merged into the indexed tag list: %v", tags)
	}
}
