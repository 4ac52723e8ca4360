package notion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string, sleeps *[]time.Duration) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Token:   "secret-token",
		BaseURL: serverURL,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClientRetriesThrottledRequests(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("unexpected version header %q", got)
		}
		attempts++
		if attempts <= 2 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[],"has_more":false}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(t, server.URL, &sleeps)

	if _, err := client.do(context.Background(), http.MethodPost, "/v1/test", nil, nil); err != nil {
		t.Fatalf("do returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(sleeps))
	}
	for _, slept := range sleeps {
		if slept != 3*time.Second {
			t.Fatalf("expected retry-after sleep of 3s, got %s", slept)
		}
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(t, server.URL, &sleeps)

	_, err := client.do(context.Background(), http.MethodGet, "/v1/test", nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "retries exhausted") {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
	// the final attempt fails without another wait
	if len(sleeps) != maxAttempts-1 {
		t.Fatalf("expected %d sleeps, got %d", maxAttempts-1, len(sleeps))
	}
	// no Retry-After header means the default wait applies
	if sleeps[0] != defaultRetryAfter {
		t.Fatalf("expected default wait %s, got %s", defaultRetryAfter, sleeps[0])
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad request"}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(t, server.URL, &sleeps)

	_, err := client.do(context.Background(), http.MethodPost, "/v1/test", nil, map[string]string{"k": "v"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected APIError with status 400, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if len(sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %d", len(sleeps))
	}
}

func TestDownloadOmitsAPIHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("download sent authorization header %q", got)
		}
		w.Write([]byte("file-bytes"))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(t, server.URL, &sleeps)

	body, err := client.Download(context.Background(), server.URL+"/file.txt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(body) != "file-bytes" {
		t.Fatalf("unexpected body %q", body)
	}
}
