// Package index keeps the shell command history used as completion context:
// the recent tail of the history file, commands typed in this session, and an
// optional embedding graph for semantic lookup.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/Paranoid-AF/sprig/logging"
)

const (
	embedBatchSize      = 32
	defaultMaxCommands  = 3000
	defaultRefreshEvery = time.Hour
)

// Options configures an Indexer.
type Options struct {
	// HistoryPath is the shell history file. Empty means ResolveHistoryPath().
	HistoryPath string
	// Embedder enables semantic search. Nil keeps only recent history.
	Embedder     *Embedder
	MaxCommands  int
	RefreshEvery time.Duration
	Logger       *slog.Logger
}

// Indexer serves recent and related commands. It is safe for concurrent use.
type Indexer struct {
	historyPath  string
	embedder     *Embedder
	maxCommands  int
	refreshEvery time.Duration
	log          *slog.Logger

	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	commands map[string]string // hash -> redacted command
	session  []string          // commands submitted in this session, oldest first

	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates an Indexer. Call Run to build and refresh the embedding graph.
func New(opts Options) *Indexer {
	path := opts.HistoryPath
	if path == "" {
		path = ResolveHistoryPath()
	}
	maxCommands := opts.MaxCommands
	if maxCommands <= 0 {
		maxCommands = defaultMaxCommands
	}
	refresh := opts.RefreshEvery
	if refresh <= 0 {
		refresh = defaultRefreshEvery
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Indexer{
		historyPath:  path,
		embedder:     opts.Embedder,
		maxCommands:  maxCommands,
		refreshEvery: refresh,
		log:          log,
		graph:        hnsw.NewGraph[string](),
		commands:     make(map[string]string),
		ready:        make(chan struct{}),
		stop:         make(chan struct{}),
	}
}

// HistoryPath returns the history file in use, or "" when none was found.
func (idx *Indexer) HistoryPath() string { return idx.historyPath }

// SemanticEnabled reports whether related-command search is available.
func (idx *Indexer) SemanticEnabled() bool { return idx.embedder != nil }

// Add records a command submitted in this session.
func (idx *Indexer) Add(cmd string) {
	if cmd == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.session) == idx.maxCommands {
		idx.session = append(idx.session[:0], idx.session[1:]...)
	}
	idx.session = append(idx.session, cmd)
}

// Recent returns up to n commands, oldest first: the history file tail
// followed by this session's commands.
func (idx *Indexer) Recent(n int) []string {
	if n <= 0 {
		return nil
	}
	cmds := readHistory(idx.historyPath, n)
	idx.mu.RLock()
	cmds = append(cmds, idx.session...)
	idx.mu.RUnlock()
	if len(cmds) > n {
		cmds = cmds[len(cmds)-n:]
	}
	return cmds
}

// Index embeds history and session commands that are not in the graph yet.
func (idx *Indexer) Index(ctx context.Context) error {
	if idx.embedder == nil {
		return nil
	}

	type pending struct{ hash, cmd string }
	var todo []pending
	seen := make(map[string]bool)

	idx.mu.RLock()
	all := append(readHistory(idx.historyPath, idx.maxCommands), idx.session...)
	for _, cmd := range all {
		h := hashCommand(cmd)
		if seen[h] {
			continue
		}
		seen[h] = true
		if _, ok := idx.commands[h]; !ok {
			todo = append(todo, pending{h, cmd})
		}
	}
	idx.mu.RUnlock()

	if len(todo) == 0 {
		return nil
	}
	idx.log.Debug("indexing commands", "count", len(todo))

	for start := 0; start < len(todo); start += embedBatchSize {
		batch := todo[start:min(start+embedBatchSize, len(todo))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = RedactCommand(p.cmd)
		}

		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			idx.log.Error("embed batch", "error", err)
			continue
		}

		nodes := make([]hnsw.Node[string], len(batch))
		for i, p := range batch {
			nodes[i] = hnsw.MakeNode(p.hash, vecs[i])
		}
		idx.mu.Lock()
		idx.graph.Add(nodes...)
		for i, p := range batch {
			idx.commands[p.hash] = texts[i]
		}
		idx.mu.Unlock()
	}
	return nil
}

// Run indexes once, marks the index ready, then re-indexes every refresh
// interval until ctx is done or Close is called.
func (idx *Indexer) Run(ctx context.Context) {
	defer idx.markReady()
	if idx.embedder == nil {
		return
	}
	if err := idx.Index(ctx); err != nil {
		idx.log.Error("initial indexing", "error", err)
	}
	idx.markReady()

	ticker := time.NewTicker(idx.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-idx.stop:
			return
		case <-ticker.C:
			if err := idx.Index(ctx); err != nil {
				idx.log.Error("periodic indexing", "error", err)
			}
		}
	}
}

func (idx *Indexer) markReady() {
	idx.readyOnce.Do(func() { close(idx.ready) })
}

// Ready is closed once the first indexing pass (or a cache load) has finished.
func (idx *Indexer) Ready() <-chan struct{} {
	return idx.ready
}

// Related returns up to k indexed commands closest to query. It never
// waits for indexing; before Ready it returns nothing.
func (idx *Indexer) Related(ctx context.Context, query string, k int) ([]string, error) {
	if idx.embedder == nil || k <= 0 {
		return nil, nil
	}
	select {
	case <-idx.ready:
	default:
		return nil, nil
	}

	idx.mu.RLock()
	empty := idx.graph.Len() == 0
	idx.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, RedactCommand(query))
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	neighbors := idx.graph.Search(vec, k)
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if cmd, ok := idx.commands[n.Key]; ok {
			out = append(out, cmd)
		}
	}
	return out, nil
}

// Close stops Run.
func (idx *Indexer) Close() {
	idx.stopOnce.Do(func() { close(idx.stop) })
}

func hashCommand(cmd string) string {
	sum := sha256.Sum256([]byte(cmd))
	return hex.EncodeToString(sum[:])
}
