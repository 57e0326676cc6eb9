package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

type cacheFile struct {
	Model   string       `json:"model"`
	Entries []cacheEntry `json:"entries"`
}

type cacheEntry struct {
	Hash      string    `json:"hash"`
	Command   string    `json:"command"`
	Embedding []float32 `json:"embedding"`
}

// SaveCache writes the embedded commands to path so the next run can skip
// re-embedding them. It does nothing when semantic search is disabled.
func (idx *Indexer) SaveCache(path string) error {
	if idx.embedder == nil {
		return nil
	}

	idx.mu.RLock()
	entries := make([]cacheEntry, 0, len(idx.commands))
	for hash, cmd := range idx.commands {
		vec, ok := idx.graph.Lookup(hash)
		if !ok {
			continue
		}
		entries = append(entries, cacheEntry{Hash: hash, Command: cmd, Embedding: vec})
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(cacheFile{Model: idx.embedder.Model(), Entries: entries})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return renameio.WriteFile(path, data, 0o600)
}

// LoadCache restores embeddings saved by SaveCache. A cache written for a
// different model is ignored. A non-empty cache marks the index ready.
func (idx *Indexer) LoadCache(path string) error {
	if idx.embedder == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("parse embedding cache: %w", err)
	}
	if cf.Model != idx.embedder.Model() {
		idx.log.Info("embedding cache model mismatch, ignoring", "cached", cf.Model, "current", idx.embedder.Model())
		return nil
	}

	nodes := make([]hnsw.Node[string], 0, len(cf.Entries))
	idx.mu.Lock()
	for _, e := range cf.Entries {
		if _, dup := idx.commands[e.Hash]; dup || len(e.Embedding) == 0 {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(e.Hash, e.Embedding))
		idx.commands[e.Hash] = e.Command
	}
	if len(nodes) > 0 {
		idx.graph.Add(nodes...)
	}
	idx.mu.Unlock()

	if len(nodes) > 0 {
		idx.markReady()
	}
	return nil
}
