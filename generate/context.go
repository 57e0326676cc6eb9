package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/Paranoid-AF/sprig/index"
	"github.com/Paranoid-AF/sprig/logging"
)

const (
	recentCommands  = 5
	relatedCommands = 5
	relatedTimeout  = time.Second
)

// Info is the extra context gathered for one request.
type Info struct {
	Recent  []string
	Related []string
	Dir     *DirContext
}

// Gatherer enriches a request with related history and directory context.
// Every source is optional; a nil *Gatherer gathers nothing.
type Gatherer struct {
	history *index.Indexer
	dirs    *DirCache
	cwd     func() string
	log     *slog.Logger
}

// NewGatherer creates a Gatherer. history, dirs and cwd may each be nil.
func NewGatherer(history *index.Indexer, dirs *DirCache, cwd func() string, log *slog.Logger) *Gatherer {
	if log == nil {
		log = logging.Discard()
	}
	return &Gatherer{history: history, dirs: dirs, cwd: cwd, log: log}
}

// Gather never blocks on slow sources. Recent commands come from the
// history file tail and the session, directory context is used only when
// cached (a miss starts a background gather), and related-command search
// is bounded by a short timeout.
func (g *Gatherer) Gather(ctx context.Context, input string) Info {
	var info Info
	if g == nil {
		return info
	}

	if g.dirs != nil && g.cwd != nil {
		if dir := g.cwd(); dir != "" {
			info.Dir = g.dirs.Get(dir)
			if info.Dir == nil {
				g.dirs.Prefetch(dir)
			}
		}
	}

	if g.history != nil {
		for _, cmd := range g.history.Recent(recentCommands) {
			info.Recent = append(info.Recent, index.RedactCommand(cmd))
		}
	}

	if g.history != nil && g.history.SemanticEnabled() {
		ctx, cancel := context.WithTimeout(ctx, relatedTimeout)
		defer cancel()
		cmds, err := g.history.Related(ctx, input, relatedCommands)
		if err != nil {
			if ctx.Err() == nil {
				g.log.Warn("related command search failed", "error", err)
			}
		} else {
			// The index stores commands already redacted.
			info.Related = cmds
		}
	}
	return info
}
