package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pageBatch(prefix string, count int) []Page {
	pages := make([]Page, count)
	for i := range pages {
		pages[i] = Page{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return pages
}

func TestQueryDatabaseFollowsCursors(t *testing.T) {
	batches := [][]Page{
		pageBatch("a", 100),
		pageBatch("b", 100),
		pageBatch("c", 37),
	}
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/databases/db-1/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var request queryRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if request.PageSize != 100 {
			t.Errorf("expected page_size 100, got %d", request.PageSize)
		}
		if call == 0 && request.StartCursor != "" {
			t.Errorf("first call carried cursor %q", request.StartCursor)
		}

		response := pageListResponse{Results: batches[call]}
		if call < len(batches)-1 {
			response.HasMore = true
			response.NextCursor = fmt.Sprintf("cursor-%d", call+1)
		}
		call++
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := queryTestClient(t, server.URL)
	pages, err := client.QueryDatabase(context.Background(), "db-1", 0)
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}
	if len(pages) != 237 {
		t.Fatalf("expected 237 pages, got %d", len(pages))
	}
	if pages[0].ID != "a-0" || pages[236].ID != "c-36" {
		t.Fatalf("page order not preserved: first=%s last=%s", pages[0].ID, pages[236].ID)
	}
	if call != 3 {
		t.Fatalf("expected 3 requests, got %d", call)
	}
}

func TestQueryDatabaseHonorsLimit(t *testing.T) {
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request queryRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// the second request only needs the remaining 50 pages
		if call == 1 && request.PageSize != 50 {
			t.Errorf("expected trailing page_size 50, got %d", request.PageSize)
		}
		response := pageListResponse{
			Results:    pageBatch(fmt.Sprintf("p%d", call), request.PageSize),
			HasMore:    true,
			NextCursor: fmt.Sprintf("cursor-%d", call+1),
		}
		call++
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := queryTestClient(t, server.URL)
	pages, err := client.QueryDatabase(context.Background(), "db-1", 150)
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}
	if len(pages) != 150 {
		t.Fatalf("expected 150 pages, got %d", len(pages))
	}
	if call != 2 {
		t.Fatalf("expected 2 requests, got %d", call)
	}
}

func TestQueryDatabaseReportsMissingDatabase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := queryTestClient(t, server.URL)
	_, err := client.QueryDatabase(context.Background(), "missing-db", 0)
	if !errors.Is(err, ErrDatabaseNotFound) {
		t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
	}
}

func queryTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Token:   "secret-token",
		BaseURL: serverURL,
		Sleep:   func(ctx context.Context, d time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}
