// Package websearch provides the web_search tool. It queries a
// configurable backend (SearXNG when configured, DuckDuckGo's instant
// answer API otherwise), caches responses with a TTL, and streams
// progress while the search runs.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/haasonsaas/conductor/internal/agent"
)

// Backend selects the search engine.
type Backend string

const (
	BackendSearXNG    Backend = "searxng"
	BackendDuckDuckGo Backend = "duckduckgo"

	// maxCacheEntries bounds the response cache.
	maxCacheEntries = 1000
)

// Config configures the web search tool.
type Config struct {
	// SearXNGURL is the base URL of a SearXNG instance. Empty disables
	// the searxng backend.
	SearXNGURL string `json:"searxng_url,omitempty"`

	// DefaultBackend picks the backend when params omit one. Defaults
	// to searxng when SearXNGURL is set, duckduckgo otherwise.
	DefaultBackend Backend `json:"default_backend,omitempty"`

	// DefaultResultCount is the result count when params omit one.
	// Default: 5.
	DefaultResultCount int `json:"default_result_count,omitempty"`

	// CacheTTL is the response cache lifetime. Default: 5 minutes.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`
}

// Params are the tool's input parameters.
type Params struct {
	Query       string  `json:"query"`
	ResultCount int     `json:"result_count,omitempty"`
	Backend     Backend `json:"backend,omitempty"`
}

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Response is the tool's full output.
type Response struct {
	Query   string   `json:"query"`
	Backend Backend  `json:"backend"`
	Results []Result `json:"results"`
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Tool implements agent.StreamingTool over the configured backends.
type Tool struct {
	config *Config
	client *http.Client

	// ddgEndpoint is overridable in tests.
	ddgEndpoint string

	cacheMu sync.RWMutex
	cache   map[string]*cacheEntry
}

// New creates the web search tool.
func New(config *Config) *Tool {
	if config == nil {
		config = &Config{}
	}
	if config.DefaultResultCount <= 0 {
		config.DefaultResultCount = 5
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.DefaultBackend == "" {
		if config.SearXNGURL != "" {
			config.DefaultBackend = BackendSearXNG
		} else {
			config.DefaultBackend = BackendDuckDuckGo
		}
	}
	return &Tool{
		config:      config,
		client:      &http.Client{Timeout: 30 * time.Second},
		ddgEndpoint: "https://api.duckduckgo.com/",
		cache:       make(map[string]*cacheEntry),
	}
}

func (t *Tool) Name() string     { return "web_search" }
func (t *Tool) Category() string { return "web" }

func (t *Tool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The search query"},
			"result_count": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Number of results (default 5)"},
			"backend": {"type": "string", "enum": ["searxng", "duckduckgo"], "description": "Search backend (default: configured default)"}
		},
		"required": ["query"]
	}`)
}

// Stream performs the search, emitting a progress event per stage and
// a final result. Cache hits skip straight to the result.
func (t *Tool) Stream(ctx context.Context, params json.RawMessage, ec *agent.ExecContext) <-chan agent.StreamItem {
	out := make(chan agent.StreamItem, 4)
	go func() {
		defer close(out)

		var p Params
		if err := json.Unmarshal(params, &p); err != nil {
			out <- errorItem(fmt.Sprintf("Invalid parameters: %v", err))
			return
		}
		if p.Query == "" {
			out <- errorItem("Query parameter is required")
			return
		}
		if p.ResultCount <= 0 {
			p.ResultCount = t.config.DefaultResultCount
		} else if p.ResultCount > 20 {
			p.ResultCount = 20
		}
		if p.Backend == "" {
			p.Backend = t.config.DefaultBackend
		}

		key := fmt.Sprintf("%s:%d:%s", p.Backend, p.ResultCount, p.Query)
		if cached := t.fromCache(key); cached != nil {
			out <- resultItem(cached)
			return
		}

		out <- agent.StreamItem{Progress: &agent.ProgressEvent{
			Stage:   "searching",
			Message: fmt.Sprintf("Searching %s for %q", p.Backend, p.Query),
		}}

		resp, err := t.search(ctx, &p)
		if err != nil && p.Backend != BackendDuckDuckGo {
			// Primary backend down; DuckDuckGo needs no configuration.
			out <- agent.StreamItem{Progress: &agent.ProgressEvent{
				Stage:   "fallback",
				Message: fmt.Sprintf("%s failed, falling back to duckduckgo", p.Backend),
			}}
			p.Backend = BackendDuckDuckGo
			resp, err = t.search(ctx, &p)
		}
		if err != nil {
			out <- errorItem(fmt.Sprintf("Search failed: %v", err))
			return
		}

		t.putCache(key, resp)
		out <- resultItem(resp)
	}()
	return out
}

func (t *Tool) search(ctx context.Context, p *Params) (*Response, error) {
	switch p.Backend {
	case BackendSearXNG:
		return t.searchSearXNG(ctx, p)
	case BackendDuckDuckGo:
		return t.searchDuckDuckGo(ctx, p)
	default:
		return nil, fmt.Errorf("unknown backend %q", p.Backend)
	}
}

func (t *Tool) searchSearXNG(ctx context.Context, p *Params) (*Response, error) {
	if t.config.SearXNGURL == "" {
		return nil, fmt.Errorf("searxng URL not configured")
	}
	base, err := url.Parse(t.config.SearXNGURL)
	if err != nil {
		return nil, fmt.Errorf("invalid searxng URL: %w", err)
	}
	base.Path = "/search"
	q := url.Values{}
	q.Set("q", p.Query)
	q.Set("format", "json")
	q.Set("categories", "general")
	base.RawQuery = q.Encode()

	body, err := t.get(ctx, base.String(), nil)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse searxng response: %w", err)
	}

	results := make([]Result, 0, p.ResultCount)
	for _, r := range raw.Results {
		if len(results) >= p.ResultCount {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return &Response{Query: p.Query, Backend: BackendSearXNG, Results: results}, nil
}

func (t *Tool) searchDuckDuckGo(ctx context.Context, p *Params) (*Response, error) {
	endpoint := fmt.Sprintf("%s?q=%s&format=json&no_html=1",
		t.ddgEndpoint, url.QueryEscape(p.Query))
	body, err := t.get(ctx, endpoint, map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; ConductorBot/1.0)",
	})
	if err != nil {
		return nil, err
	}

	var raw struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse duckduckgo response: %w", err)
	}

	var results []Result
	if raw.AbstractText != "" && raw.AbstractURL != "" {
		results = append(results, Result{
			Title:   raw.Heading,
			URL:     raw.AbstractURL,
			Snippet: raw.AbstractText,
		})
	}
	for _, topic := range raw.RelatedTopics {
		if len(results) >= p.ResultCount {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		results = append(results, Result{Title: title, URL: topic.FirstURL, Snippet: topic.Text})
	}
	return &Response{Query: p.Query, Backend: BackendDuckDuckGo, Results: results}, nil
}

func (t *Tool) get(ctx context.Context, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (t *Tool) fromCache(key string) *Response {
	t.cacheMu.RLock()
	defer t.cacheMu.RUnlock()
	entry, ok := t.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.response
}

func (t *Tool) putCache(key string, resp *Response) {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()

	now := time.Now()
	for k, v := range t.cache {
		if now.After(v.expiresAt) {
			delete(t.cache, k)
		}
	}
	// Still full after expiry sweep: evict whatever expires soonest.
	for len(t.cache) >= maxCacheEntries {
		var victim string
		var soonest time.Time
		for k, v := range t.cache {
			if victim == "" || v.expiresAt.Before(soonest) {
				victim = k
				soonest = v.expiresAt
			}
		}
		delete(t.cache, victim)
	}

	t.cache[key] = &cacheEntry{response: resp, expiresAt: now.Add(t.config.CacheTTL)}
}

func resultItem(resp *Response) agent.StreamItem {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return errorItem(fmt.Sprintf("Failed to format response: %v", err))
	}
	return agent.StreamItem{Result: &agent.ToolResult{
		Content: string(out),
		Data:    map[string]any{"result_count": len(resp.Results), "backend": string(resp.Backend)},
	}}
}

func errorItem(msg string) agent.StreamItem {
	return agent.StreamItem{Result: &agent.ToolResult{Content: msg, IsError: true}}
}
