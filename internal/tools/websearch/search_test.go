package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haasonsaas/conductor/internal/agent"
)

func drain(t *testing.T, items <-chan agent.StreamItem) ([]agent.ProgressEvent, *agent.ToolResult) {
	t.Helper()
	var progress []agent.ProgressEvent
	var result *agent.ToolResult
	for item := range items {
		if item.Progress != nil {
			progress = append(progress, *item.Progress)
		}
		if item.Result != nil {
			result = item.Result
		}
	}
	if result == nil {
		t.Fatal("stream ended without a result")
	}
	return progress, result
}

func searxngServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Tide charts", "url": "https://example.com/tides", "content": "Daily tide tables"},
				{"title": "Tidal physics", "url": "https://example.com/physics", "content": "Why tides happen"},
			},
		})
	}))
}

func TestStreamSearXNGEmitsProgressThenResult(t *testing.T) {
	srv := searxngServer(t, nil)
	defer srv.Close()

	tool := New(&Config{SearXNGURL: srv.URL})
	progress, result := drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"query":"tides"}`), nil))

	if len(progress) != 1 || progress[0].Stage != "searching" {
		t.Fatalf("expected one searching progress event, got %+v", progress)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}

	var resp Response
	if err := json.Unmarshal([]byte(result.Content), &resp); err != nil {
		t.Fatalf("result content is not JSON: %v", err)
	}
	if resp.Backend != BackendSearXNG || len(resp.Results) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if result.Data["result_count"] != 2 {
		t.Fatalf("expected result_count data, got %+v", result.Data)
	}
}

func TestStreamCachesResponses(t *testing.T) {
	var hits int32
	srv := searxngServer(t, &hits)
	defer srv.Close()

	tool := New(&Config{SearXNGURL: srv.URL, CacheTTL: time.Minute})

	drain(t, tool.Stream(context.Background(), json.RawMessage(`{"query":"tides"}`), nil))
	progress, result := drain(t, tool.Stream(context.Background(), json.RawMessage(`{"query":"tides"}`), nil))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one backend hit, got %d", hits)
	}
	// Cache hits skip the searching stage entirely.
	if len(progress) != 0 {
		t.Fatalf("expected no progress on cache hit, got %+v", progress)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
}

func TestStreamFallsBackToDuckDuckGo(t *testing.T) {
	ddg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Tides",
			"AbstractText": "Tides are the rise and fall of sea levels",
			"AbstractURL":  "https://example.com/tides",
		})
	}))
	defer ddg.Close()

	// SearXNG configured but unreachable.
	tool := New(&Config{SearXNGURL: "http://127.0.0.1:1"})
	tool.ddgEndpoint = ddg.URL + "/"

	progress, result := drain(t, tool.Stream(context.Background(),
		json.RawMessage(`{"query":"tides"}`), nil))

	sawFallback := false
	for _, p := range progress {
		if p.Stage == "fallback" {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Fatalf("expected a fallback progress event, got %+v", progress)
	}
	if result.IsError {
		t.Fatalf("expected fallback to succeed, got %s", result.Content)
	}

	var resp Response
	if err := json.Unmarshal([]byte(result.Content), &resp); err != nil {
		t.Fatalf("result content is not JSON: %v", err)
	}
	if resp.Backend != BackendDuckDuckGo || len(resp.Results) != 1 {
		t.Fatalf("unexpected fallback response %+v", resp)
	}
}

func TestStreamRejectsMissingQuery(t *testing.T) {
	tool := New(nil)
	_, result := drain(t, tool.Stream(context.Background(), json.RawMessage(`{}`), nil))
	if !result.IsError || !strings.Contains(result.Content, "Query parameter is required") {
		t.Fatalf("expected query-required error, got %+v", result)
	}
}

func TestStreamRejectsBadJSON(t *testing.T) {
	tool := New(nil)
	_, result := drain(t, tool.Stream(context.Background(), json.RawMessage(`{`), nil))
	if !result.IsError || !strings.Contains(result.Content, "Invalid parameters") {
		t.Fatalf("expected invalid-parameters error, got %+v", result)
	}
}

func TestDefaultsPickBackendFromConfig(t *testing.T) {
	if New(&Config{SearXNGURL: "http://x"}).config.DefaultBackend != BackendSearXNG {
		t.Fatal("expected searxng default when URL configured")
	}
	if New(nil).config.DefaultBackend != BackendDuckDuckGo {
		t.Fatal("expected duckduckgo default without a searxng URL")
	}
}
