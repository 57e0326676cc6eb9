package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paranoid-AF/sprig/index"
)

// sseServer streams each delta as a chat completion chunk, then [DONE].
func sseServer(t *testing.T, deltas []string, captured *chatRequest, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		for _, d := range deltas {
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": d}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(url string, opts Options) *Provider {
	opts.BaseURL = url
	opts.APIKey = "test-key"
	if opts.Model == "" {
		opts.Model = "test/model"
	}
	return New(opts)
}

func TestStreamYieldsGrowingSuggestions(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"g", "it ", "sta", "tus"}, &req, nil)
	p := newTestProvider(srv.URL, Options{})

	got := slices.Collect(p.Stream(context.Background(), "show repo state", []string{"> ls", "README.md"}))

	assert.Equal(t, []string{"g", "git", "git sta", "git status"}, got)
	assert.Equal(t, "test/model", req.Model)
	assert.Equal(t, 50, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, SystemMessage, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "> ls\nREADME.md")
	assert.Contains(t, req.Messages[1].Content, "Current input: show repo state")
}

func TestStreamReducesEchoedCommand(t *testing.T) {
	srv := sseServer(t, []string{"`git", " status`"}, nil, nil)
	p := newTestProvider(srv.URL, Options{})

	got := slices.Collect(p.Stream(context.Background(), "git st", nil))
	assert.Equal(t, []string{"atus"}, got)
}

func TestStreamSkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"ls -la"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()
	p := newTestProvider(srv.URL, Options{})

	got := slices.Collect(p.Stream(context.Background(), "list files", nil))
	assert.Equal(t, []string{"ls -la"}, got)
}

func TestStreamErrorsEndEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"no credits"}}`, http.StatusPaymentRequired)
		}},
		{"error chunk", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `data: {"error":{"message":"overloaded"}}`+"\n\n")
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			p := newTestProvider(srv.URL, Options{})

			got := slices.Collect(p.Stream(context.Background(), "git", nil))
			assert.Empty(t, got)
		})
	}
}

func TestStreamTransportErrorEndsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newTestProvider(url, Options{Timeout: 200 * time.Millisecond})
	assert.Empty(t, slices.Collect(p.Stream(context.Background(), "git", nil)))
}

func TestStreamIdleTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"make"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := newTestProvider(srv.URL, Options{Timeout: 100 * time.Millisecond})
	start := time.Now()
	got := slices.Collect(p.Stream(context.Background(), "build it", nil))

	assert.Equal(t, []string{"make"}, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStreamEarlyBreakClosesConnection(t *testing.T) {
	closed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; ; i++ {
			_, err := fmt.Fprintf(w, `data: {"choices":[{"delta":{"content":"x%d "}}]}`+"\n\n", i)
			if err != nil {
				close(closed)
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				close(closed)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, Options{})
	for s := range p.Stream(context.Background(), "anything", nil) {
		assert.Equal(t, "x0", s)
		break
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("server still streaming after the consumer stopped")
	}
}

func TestStreamCancelledContext(t *testing.T) {
	srv := sseServer(t, []string{"ls"}, nil, nil)
	p := newTestProvider(srv.URL, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, slices.Collect(p.Stream(ctx, "list", nil)))
}

func TestStreamBlankInputMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := sseServer(t, []string{"ls"}, nil, &hits)
	p := newTestProvider(srv.URL, Options{})

	assert.Empty(t, slices.Collect(p.Stream(context.Background(), "  \t", nil)))
	assert.Zero(t, hits.Load())
}

func TestStreamUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := sseServer(t, []string{"git ", "status"}, nil, &hits)
	cache := NewCache(time.Minute)
	defer cache.Close()
	p := newTestProvider(srv.URL, Options{Cache: cache})

	first := slices.Collect(p.Stream(context.Background(), "repo state", []string{"a"}))
	second := slices.Collect(p.Stream(context.Background(), "repo state", []string{"a"}))
	third := slices.Collect(p.Stream(context.Background(), "repo state", []string{"b"}))

	assert.Equal(t, []string{"git", "git status"}, first)
	assert.Equal(t, []string{"git status"}, second)
	assert.Equal(t, []string{"git", "git status"}, third)
	assert.Equal(t, int32(2), hits.Load())
}

func TestStreamTrimsContextAndRedacts(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"ok"}, &req, nil)
	p := newTestProvider(srv.URL, Options{ContextLines: 2})

	lines := []string{"old line", "> export TOKEN=hunter2", "done"}
	_ = slices.Collect(p.Stream(context.Background(), "next", lines))

	user := req.Messages[1].Content
	assert.NotContains(t, user, "old line")
	assert.NotContains(t, user, "hunter2")
	assert.Contains(t, user, "> export TOKEN=***\ndone")
	assert.Equal(t, "> export TOKEN=hunter2", lines[1], "caller's lines must not change")
}

func TestTelemetryHeaders(t *testing.T) {
	tests := []struct {
		telemetry bool
		want      string
	}{
		{true, "https://github.com/Paranoid-AF/sprig"},
		{false, ""},
	}
	for _, tt := range tests {
		var referer atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			referer.Store(r.Header.Get("HTTP-Referer"))
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		p := newTestProvider(srv.URL, Options{Telemetry: tt.telemetry})
		_ = slices.Collect(p.Stream(context.Background(), "x", nil))
		srv.Close()

		if got, _ := referer.Load().(string); got != tt.want {
			t.Errorf("telemetry=%v: HTTP-Referer = %q, want %q", tt.telemetry, got, tt.want)
		}
	}
}

func TestStreamIncludesDirectoryContext(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"make test"}, &req, nil)

	dc := NewDirCache(time.Minute, nil)
	defer dc.Close()
	dir := t.TempDir()
	dc.cache.Set(dir, &DirContext{
		Path:           dir,
		Listing:        "Makefile main.go",
		Manifests:      map[string]string{"Makefile targets": "build, test"},
		PackageManager: "go",
	}, 0)

	p := newTestProvider(srv.URL, Options{
		Gatherer: NewGatherer(nil, dc, func() string { return dir }, nil),
	})
	_ = slices.Collect(p.Stream(context.Background(), "run tests", nil))

	user := req.Messages[1].Content
	for _, want := range []string{"cwd: " + dir, "files: Makefile main.go", "pkg: go", "Makefile targets: build, test"} {
		assert.True(t, strings.Contains(user, want), "prompt missing %q:\n%s", want, user)
	}
}

func TestStreamIncludesRecentCommands(t *testing.T) {
	var req chatRequest
	srv := sseServer(t, []string{"git push"}, &req, nil)

	histfile := filepath.Join(t.TempDir(), ".zsh_history")
	require.NoError(t, os.WriteFile(histfile, []byte(
		": 1700000000:0;git commit -m wip\n: 1700000001:0;export GITHUB_TOKEN=ghp_secret\n"), 0600))
	history := index.New(index.Options{HistoryPath: histfile})
	history.Add("make test")

	p := newTestProvider(srv.URL, Options{
		Gatherer: NewGatherer(history, nil, nil, nil),
	})
	_ = slices.Collect(p.Stream(context.Background(), "push it", nil))

	user := req.Messages[1].Content
	assert.Contains(t, user, "Recent commands:\n- git commit -m wip\n- export GITHUB_TOKEN=***\n- make test")
	assert.NotContains(t, user, "ghp_secret")
}
