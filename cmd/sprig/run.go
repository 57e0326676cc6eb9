package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Paranoid-AF/sprig"
	"github.com/Paranoid-AF/sprig/generate"
	"github.com/Paranoid-AF/sprig/index"
	"github.com/Paranoid-AF/sprig/logging"
	"github.com/Paranoid-AF/sprig/loop"
	"github.com/Paranoid-AF/sprig/session"
	"github.com/Paranoid-AF/sprig/shell"
	"github.com/Paranoid-AF/sprig/suggest"
	"github.com/Paranoid-AF/sprig/tui"
)

// settings is the resolved startup configuration.
type settings struct {
	cfg    *sprig.Config
	model  sprig.Model
	apiKey string
}

// resolve loads the config file and checks the model and credential.
func resolve(modelFlag string) (*settings, error) {
	cfg, err := sprig.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	model, err := sprig.ResolveModel(cfg, modelFlag)
	if err != nil {
		return nil, err
	}
	apiKey := sprig.ResolveGenerationAPIKey(cfg)
	if apiKey == "" {
		return nil, sprig.ErrMissingAPIKey
	}
	return &settings{cfg: cfg, model: model, apiKey: apiKey}, nil
}

func run(ctx context.Context, modelFlag string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return sprig.ErrNotTerminal
	}
	s, err := resolve(modelFlag)
	if err != nil {
		return err
	}
	cfg := s.cfg

	logger, err := logging.New(logging.Options{Path: sprig.LogPath(), Level: sprig.ResolveLogLevel(cfg)})
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Component("main")
	log.Info("starting", "version", Version, "model", s.model.Name)
	for _, w := range sprig.ValidateConfig(cfg) {
		log.Warn("config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	lp := loop.New()
	defer lp.Close()

	history := newIndexer(ctx, cfg, logger)
	defer func() {
		history.Close()
		if err := history.SaveCache(sprig.EmbeddingCachePath()); err != nil {
			log.Warn("save embedding cache", "error", err)
		}
	}()

	sh := shell.New(shell.Options{
		Command:         cfg.Shell.Command,
		DeliveryTimeout: cfg.Shell.DeliveryTimeout(),
		Logger:          logger.Component("shell"),
	})
	defer func() {
		sh.Terminate()
		if n := sh.Dropped(); n > 0 {
			log.Warn("output lines dropped", "count", n)
		}
	}()

	dirs := generate.NewDirCache(0, logger.Component("dircache"))
	defer dirs.Close()
	cache := generate.NewCache(cfg.Generation.CacheTTL())
	defer cache.Close()

	provider := generate.New(generate.Options{
		BaseURL:      sprig.ResolveGenerationBaseURL(cfg),
		APIKey:       s.apiKey,
		Model:        s.model.ID,
		MaxTokens:    cfg.Generation.MaxTokens,
		Temperature:  cfg.Generation.Temperature,
		Timeout:      cfg.Generation.RequestTimeout(),
		ContextLines: cfg.Generation.ContextLines,
		Telemetry:    sprig.OpenRouterTelemetryEnabled(cfg),
		Prompt:       generate.LoadPrompt(sprig.PromptPath(), logger.Component("prompt")),
		Cache:        cache,
		Gatherer:     generate.NewGatherer(history, dirs, sh.Cwd, logger.Component("context")),
		Logger:       logger.Component("generate"),
	})

	sess := session.New(nil)
	coord := suggest.New(provider, lp, suggest.Options{
		Debounce:          cfg.Generation.Debounce(),
		RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		OnSuggestion:      sess.SetSuggestion,
		Logger:            logger.Component("suggest"),
	})
	editor := session.NewEditor(sess, sh, coord, session.EditorOptions{
		ContextLines: cfg.Generation.ContextLines,
		History:      history,
		Logger:       logger.Component("editor"),
	})
	model := tui.New(tui.Options{
		Editor: editor,
		Tasks:  lp.Tasks(),
		Done:   lp.Done(),
		Exited: sh.Exited(),
		Status: func() string { return s.model.Name + " " + coord.State().String() },
		Logger: logger.Component("tui"),
	})

	err = sh.Start(func(ctx context.Context, line string) error {
		err := lp.Do(ctx, func() { sess.AppendLine(line) })
		if errors.Is(err, loop.ErrPending) {
			// Accepted; it will be appended.
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err = p.Run()

	// The UI no longer drains the loop; closing it fails any pending
	// handoff so the coordinator can be torn down from here.
	lp.Close()
	coord.Close()
	log.Info("exiting")
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

func newIndexer(ctx context.Context, cfg *sprig.Config, logger *logging.Logger) *index.Indexer {
	var embedder *index.Embedder
	if sprig.EmbeddingEnabled(cfg) {
		embedder = index.NewEmbedder(sprig.ResolveEmbeddingBaseURL(cfg), sprig.ResolveEmbeddingAPIKey(cfg), cfg.Embedding.Model)
	}
	idx := index.New(index.Options{
		Embedder:     embedder,
		MaxCommands:  cfg.Embedding.MaxHistoryCommands,
		RefreshEvery: time.Duration(cfg.Embedding.TTLMinutes) * time.Minute,
		Logger:       logger.Component("index"),
	})
	if err := idx.LoadCache(sprig.EmbeddingCachePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Component("index").Warn("load embedding cache", "error", err)
	}
	go idx.Run(ctx)
	return idx
}
