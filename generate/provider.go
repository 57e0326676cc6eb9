// Package generate streams inline command suggestions from an
// OpenAI-compatible chat completions endpoint.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Paranoid-AF/sprig/index"
	"github.com/Paranoid-AF/sprig/logging"
)

// Defaults for a completion request.
const (
	DefaultMaxTokens    = 50
	DefaultTemperature  = 0.3
	DefaultTimeout      = 5 * time.Second
	DefaultContextLines = 50
)

// Options configures a Provider.
type Options struct {
	BaseURL string
	APIKey  string
	// Model is the provider-side model identifier.
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds connecting and each idle gap between stream lines.
	Timeout time.Duration
	// ContextLines caps how many trailing scrollback lines are sent.
	ContextLines int
	// Telemetry sends OpenRouter attribution headers.
	Telemetry bool

	Prompt   *Prompt   // nil uses the built-in prompt
	Cache    *Cache    // nil disables caching
	Gatherer *Gatherer // nil disables enrichment
	Logger   *slog.Logger
}

// Provider opens one streaming request per Stream call.
type Provider struct {
	opts   Options
	client *http.Client
	log    *slog.Logger
}

// New creates a Provider, filling unset options with defaults.
func New(opts Options) *Provider {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = DefaultContextLines
	}
	if opts.Prompt == nil {
		opts.Prompt = DefaultPrompt()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	dialer := &net.Dialer{Timeout: opts.Timeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &Provider{
		opts:   opts,
		client: &http.Client{Transport: transport},
		log:    log,
	}
}

// Model returns the provider-side model identifier.
func (p *Provider) Model() string { return p.opts.Model }

// Stream returns a sequence of growing suggestions for input. Each value
// is the whole suggestion so far. The sequence ends at the end of the
// stream, on any error, or when ctx ends; errors are logged, never
// returned. Stopping the range early closes the connection.
func (p *Provider) Stream(ctx context.Context, input string, contextLines []string) iter.Seq[string] {
	lines := tail(contextLines, p.opts.ContextLines)
	return func(yield func(string) bool) {
		if strings.TrimSpace(input) == "" {
			return
		}

		key := cacheKey(p.opts.Model, input, lines)
		if s, ok := p.opts.Cache.Get(key); ok {
			p.log.Debug("suggestion cache hit", "input", input)
			yield(s)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		body, err := p.requestBody(ctx, input, lines)
		if err != nil {
			p.log.Error("build completion request", "error", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			p.log.Error("build completion request", "error", err)
			return
		}
		p.setHeaders(req)

		start := time.Now()
		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Warn("completion request failed", "error", err)
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			p.log.Warn("completion API error", "status", resp.StatusCode, "body", string(msg))
			return
		}

		idle := time.AfterFunc(p.opts.Timeout, cancel)
		defer idle.Stop()

		sse := newSSEReader(resp.Body)
		var raw strings.Builder
		var last string
		chunks := 0
		for {
			data, err := sse.next(func() { idle.Reset(p.opts.Timeout) })
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					p.log.Debug("completion stream ended without [DONE]", "chunks", chunks)
				case ctx.Err() != nil:
					p.log.Debug("completion stream cancelled or idle", "chunks", chunks)
				default:
					p.log.Warn("read completion stream", "error", err)
				}
				return
			}
			if string(data) == doneSentinel {
				break
			}
			chunks++

			var chunk streamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				p.log.Debug("skipping malformed stream chunk", "error", err)
				continue
			}
			if chunk.Error != nil {
				p.log.Warn("completion stream error", "message", chunk.Error.Message)
				return
			}
			raw.WriteString(chunk.content())

			s := normalize(raw.String(), input)
			if s == "" || s == last {
				continue
			}
			if last == "" {
				p.log.Debug("first suggestion", "latency", time.Since(start), "input", input)
			}
			last = s
			if !yield(s) {
				return
			}
		}

		p.log.Debug("completion stream done", "chunks", chunks, "suggestion", last, "elapsed", time.Since(start))
		p.opts.Cache.Set(key, last)
	}
}

func (p *Provider) requestBody(ctx context.Context, input string, lines []string) ([]byte, error) {
	info := p.opts.Gatherer.Gather(ctx, input)
	data := PromptData{
		ContextLines:    index.RedactLines(lines),
		RecentCommands:  info.Recent,
		RelatedCommands: info.Related,
		Input:           input,
	}
	if d := info.Dir; d != nil {
		data.Cwd = d.Path
		data.DirListing = d.Listing
		data.PackageManager = d.PackageManager
		data.Manifests = d.Manifests
	}
	prompt, err := p.opts.Prompt.Render(data)
	if err != nil {
		return nil, err
	}
	p.log.Debug("prompt", "user", prompt)

	return json.Marshal(chatRequest{
		Model: p.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemMessage},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Stream:      true,
	})
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}
	if p.opts.Telemetry {
		req.Header.Set("X-Title", "sprig - AI command suggestions for your shell")
		req.Header.Set("HTTP-Referer", "https://github.com/Paranoid-AF/sprig")
	}
}

// tail returns a copy of the last n lines.
func tail(lines []string, n int) []string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return append([]string(nil), lines...)
}
