package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tasklenslab/tasklens/internal/notion"
	"github.com/tasklenslab/tasklens/internal/store"
)

// stubAPI emulates the remote endpoints the sync path touches.
type stubAPI struct {
	t         *testing.T
	editStamp string
	queries   int
}

func (s *stubAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/databases/db-1/query", func(w http.ResponseWriter, r *http.Request) {
		s.queries++
		fmt.Fprintf(w, `{
			"results": [{
				"id": "page-1",
				"created_time": "2026-08-01T09:00:00.000Z",
				"last_edited_time": %q,
				"properties": {
					"Name": {"type": "title", "title": [{"plain_text": "Quarterly review", "annotations": {}}]},
					"NID": {"type": "unique_id", "unique_id": {"number": 42}},
					"Status": {"type": "select", "select": {"name": "4 Doing"}},
					"Priority": {"type": "select", "select": {"name": "High (1wk)"}},
					"Due": {"type": "date", "date": {"start": "2026-09-15"}},
					"Tags": {"type": "multi_select", "multi_select": [{"name": "ops"}]},
					"Parent item": {"type": "relation", "relation": [{"id": "parent-page"}]},
					"Files & media": {"type": "files", "files": [
						{"name": "plan.txt", "type": "external", "external": {"url": "%s/files/plan.txt"}}
					]}
				}
			}],
			"has_more": false,
			"next_cursor": null
		}`, s.editStamp, "http://"+r.Host)
	})

	mux.HandleFunc("/v1/blocks/page-1/children", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "b1", "type": "paragraph", "has_children": false,
					"paragraph": map[string]any{"rich_text": []map[string]any{
						{"plain_text": "Agenda", "annotations": map[string]bool{"bold": true}},
					}}},
				{"id": "b2", "type": "to_do", "has_children": false,
					"to_do": map[string]any{"checked": false, "rich_text": []map[string]any{
						{"plain_text": "collect metrics", "annotations": map[string]bool{}},
					}}},
			},
			"has_more": false,
		})
	})

	mux.HandleFunc("/v1/pages/parent-page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "parent-page",
			"properties": {"NID": {"type": "unique_id", "unique_id": {"number": 7}}}
		}`)
	})

	mux.HandleFunc("/v1/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"rich_text": [{"plain_text": "bring the numbers", "annotations": {}}]}]}`)
	})

	mux.HandleFunc("/files/plan.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "1. metrics\n2. risks")
	})

	return mux
}

func newIntegrationPipeline(t *testing.T, serverURL, dataDir string) (*Pipeline, *store.Store) {
	t.Helper()
	client, err := notion.NewClient(notion.ClientConfig{
		Token:   "secret-token",
		BaseURL: serverURL,
		Sleep:   func(ctx context.Context, d time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resolver, err := NewResolver(ResolverConfig{Client: client, NIDProperty: "NID"})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	fetcher, err := NewFetcher(FetcherConfig{Client: client, BaseDir: filepath.Join(dataDir, "attachments")})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	assembler, err := NewAssembler(AssemblerConfig{
		Client:     client,
		Resolver:   resolver,
		Fetcher:    fetcher,
		Properties: testProperties(),
	})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	cacheStore, err := store.NewStore(store.StoreConfig{Path: filepath.Join(dataDir, "pages.csv")})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	pipeline, err := NewPipeline(PipelineConfig{
		Client:     client,
		Assembler:  assembler,
		Store:      cacheStore,
		DatabaseID: "db-1",
		Properties: testProperties(),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pipeline, cacheStore
}

func TestSyncEndToEnd(t *testing.T) {
	stub := &stubAPI{t: t, editStamp: "2026-08-20T10:00:00.000Z"}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	dataDir := t.TempDir()
	pipeline, cacheStore := newIntegrationPipeline(t, server.URL, dataDir)

	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Listed != 1 || summary.Updated != 1 || summary.CacheSize != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	records, err := cacheStore.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	record := records[0]
	if record.UID != "page-1" || record.Name != "Quarterly review" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.NID == nil || *record.NID != 42 {
		t.Fatalf("nid missing: %v", record.NID)
	}
	if record.ParentNID == nil || *record.ParentNID != 7 {
		t.Fatalf("parent relation unresolved: %v", record.ParentNID)
	}
	if record.BodyContent != "**Agenda**\n[ ] collect metrics" {
		t.Fatalf("unexpected body %q", record.BodyContent)
	}
	if record.Comments != "bring the numbers" {
		t.Fatalf("unexpected comments %q", record.Comments)
	}
	if len(record.FilesAndMedia) != 1 || record.FilesAndMedia[0] != "plan.txt" {
		t.Fatalf("attachment not recorded: %v", record.FilesAndMedia)
	}

	stored, err := readStoredAttachment(dataDir)
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if !strings.Contains(stored, "metrics") {
		t.Fatalf("attachment content wrong: %q", stored)
	}
}

func TestSyncSecondRunSkipsUnchanged(t *testing.T) {
	stub := &stubAPI{t: t, editStamp: "2026-08-20T10:00:00.000Z"}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	dataDir := t.TempDir()
	pipeline, _ := newIntegrationPipeline(t, server.URL, dataDir)

	if _, err := pipeline.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Updated != 0 {
		t.Fatalf("unchanged record not skipped: %+v", summary)
	}

	// after a remote edit, the record syncs again
	stub.editStamp = "2026-08-27T15:30:00.000Z"
	summary, err = pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("edited record not refreshed: %+v", summary)
	}
}

func readStoredAttachment(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, "attachments", "42", "plan.txt"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
