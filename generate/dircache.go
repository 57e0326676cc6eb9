package generate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Paranoid-AF/sprig/logging"
)

// DirContext describes the directory the shell is in.
type DirContext struct {
	Path           string
	Listing        string            // space-separated entries, hidden files included
	GitRoot        string            // "" outside a repository
	Manifests      map[string]string // label -> extracted summary
	PackageManager string            // from lockfiles in Path or GitRoot
}

const (
	dirCacheTTL      = 10 * time.Minute
	gatherTimeout    = 3 * time.Second
	listingMaxBytes  = 512
	manifestMaxBytes = 512
)

// DirCache gathers and caches DirContext per directory. Concurrent
// gathers of the same directory share one run.
type DirCache struct {
	cache *ttlcache.Cache[string, *DirContext]
	group singleflight.Group
	log   *slog.Logger
}

// NewDirCache creates a DirCache. A ttl of zero uses the default.
func NewDirCache(ttl time.Duration, log *slog.Logger) *DirCache {
	if ttl <= 0 {
		ttl = dirCacheTTL
	}
	if log == nil {
		log = logging.Discard()
	}
	c := ttlcache.New[string, *DirContext](
		ttlcache.WithTTL[string, *DirContext](ttl),
		ttlcache.WithDisableTouchOnHit[string, *DirContext](),
	)
	go c.Start()
	return &DirCache{cache: c, log: log}
}

// Close stops the expiry loop.
func (dc *DirCache) Close() {
	dc.cache.Stop()
}

// Get returns the cached context for dir, or nil.
func (dc *DirCache) Get(dir string) *DirContext {
	if item := dc.cache.Get(dir); item != nil {
		return item.Value()
	}
	return nil
}

// Gather collects context for dir, caches it and returns it.
func (dc *DirCache) Gather(ctx context.Context, dir string) *DirContext {
	v, _, _ := dc.group.Do(dir, func() (any, error) {
		entry := dc.gather(ctx, dir)
		dc.cache.Set(dir, entry, ttlcache.DefaultTTL)
		dc.log.Debug("gathered directory context", "path", dir, "git_root", entry.GitRoot)
		return entry, nil
	})
	return v.(*DirContext)
}

// Prefetch gathers dir in the background unless it is already cached.
func (dc *DirCache) Prefetch(dir string) {
	if dir == "" || dc.Get(dir) != nil {
		return
	}
	go dc.Gather(context.Background(), dir)
}

func (dc *DirCache) gather(ctx context.Context, dir string) *DirContext {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	entry := &DirContext{Path: dir, Manifests: make(map[string]string)}

	rootCh := make(chan string, 1)
	go func() {
		rootCh <- strings.TrimSpace(runCmd(ctx, dir, "git", "rev-parse", "--show-toplevel"))
	}()

	entry.Listing = listDir(dir)
	entry.GitRoot = <-rootCh

	collectManifests(dir, "", entry.Manifests)
	if entry.GitRoot != "" && entry.GitRoot != dir {
		collectManifests(entry.GitRoot, "root ", entry.Manifests)
	}
	entry.PackageManager = detectPackageManager(dir, entry.GitRoot)
	return entry
}

func listDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return truncate(strings.Join(names, " "), listingMaxBytes)
}

func runCmd(ctx context.Context, dir, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

type manifest struct {
	file    string
	label   string
	extract func(string) string
}

var manifests = []manifest{
	{"package.json", "package.json scripts", extractPackageScripts},
	{"Makefile", "Makefile targets", extractMakeTargets},
	{"justfile", "justfile recipes", extractJustRecipes},
	{"Cargo.toml", "Cargo.toml", extractCargo},
	{"pyproject.toml", "pyproject.toml", extractPyproject},
	{"go.mod", "go.mod", extractGoMod},
}

func collectManifests(dir, prefix string, out map[string]string) {
	for _, m := range manifests {
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if summary := m.extract(string(data)); summary != "" {
			out[prefix+m.label] = truncate(summary, manifestMaxBytes)
		}
	}
}

func extractPackageScripts(content string) string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil || len(pkg.Scripts) == 0 {
		return ""
	}
	names := make([]string, 0, len(pkg.Scripts))
	for name := range pkg.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + pkg.Scripts[name]
	}
	return strings.Join(parts, ", ")
}

// extractMakeTargets lists explicit targets, skipping recipes, comments,
// special targets and variable assignments.
func extractMakeTargets(content string) string {
	return ruleNames(content, func(line string) bool {
		return line[0] == '\t' || line[0] == '.'
	}, "$%")
}

// extractJustRecipes lists recipe names, skipping indented bodies and settings.
func extractJustRecipes(content string) string {
	return ruleNames(content, func(line string) bool {
		return line[0] == ' ' || line[0] == '\t' || strings.HasPrefix(line, "set ")
	}, "${}()")
}

func ruleNames(content string, skip func(string) bool, reject string) string {
	var names []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || skip(line) {
			continue
		}
		before, after, ok := strings.Cut(line, ":")
		if !ok || strings.HasPrefix(after, "=") {
			continue
		}
		name := strings.TrimSpace(before)
		// "name args" in a justfile, "a b" multi-target in make
		name, _, _ = strings.Cut(name, " ")
		if name == "" || strings.ContainsAny(name, reject) || strings.Contains(name, "=") || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func extractCargo(content string) string {
	var cargo struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
		Bin []struct {
			Name string `toml:"name"`
		} `toml:"bin"`
	}
	if _, err := toml.Decode(content, &cargo); err != nil {
		return ""
	}
	var parts []string
	if cargo.Package.Name != "" {
		parts = append(parts, fmt.Sprintf("package %s", cargo.Package.Name))
	}
	for _, b := range cargo.Bin {
		if b.Name != "" {
			parts = append(parts, fmt.Sprintf("bin %s", b.Name))
		}
	}
	return strings.Join(parts, ", ")
}

func extractPyproject(content string) string {
	var py struct {
		Project struct {
			Name    string            `toml:"name"`
			Scripts map[string]string `toml:"scripts"`
		} `toml:"project"`
	}
	if _, err := toml.Decode(content, &py); err != nil || py.Project.Name == "" {
		return ""
	}
	parts := []string{"project " + py.Project.Name}
	scripts := make([]string, 0, len(py.Project.Scripts))
	for name := range py.Project.Scripts {
		scripts = append(scripts, name)
	}
	sort.Strings(scripts)
	for _, name := range scripts {
		parts = append(parts, "script "+name)
	}
	return strings.Join(parts, ", ")
}

func extractGoMod(content string) string {
	var parts []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") || strings.HasPrefix(line, "go ") {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// lockfiles maps lockfile names to package managers, most specific first.
var lockfiles = []struct {
	file, manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"Cargo.lock", "cargo"},
	{"poetry.lock", "poetry"},
	{"uv.lock", "uv"},
	{"go.sum", "go"},
}

func detectPackageManager(dir, gitRoot string) string {
	for _, d := range []string{dir, gitRoot} {
		if d == "" {
			continue
		}
		for _, lf := range lockfiles {
			if _, err := os.Stat(filepath.Join(d, lf.file)); err == nil {
				return lf.manager
			}
		}
	}
	return ""
}

// truncate cuts s to at most maxBytes on a rune boundary, marking the cut with "...".
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
