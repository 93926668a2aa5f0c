package configrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/envgate/pkg/config"
	"github.com/cuemby/envgate/pkg/log"
	"github.com/cuemby/envgate/pkg/metrics"
	"github.com/cuemby/envgate/pkg/types"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce groups bursts of file events into one sync
const DefaultDebounce = 500 * time.Millisecond

// Sync results
const (
	ResultApplied   = "applied"
	ResultUnchanged = "unchanged"
	ResultRemoved   = "removed"
	ResultFailed    = "failed"
)

// Sink receives the parsed contents of config repositories
type Sink interface {
	UpsertConfigRepo(id string, pipelines []string, parts []*types.Environment) error
	RemoveConfigRepo(id string) error
}

// Document is the content of one config repository file
type Document struct {
	Pipelines    []string             `yaml:"pipelines"`
	Environments []*types.Environment `yaml:"environments"`
}

// Parse decodes a config repository document
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config repository: %w", err)
	}
	for i, env := range doc.Environments {
		if env == nil {
			return nil, fmt.Errorf("environments[%d]: empty entry", i)
		}
	}
	return &doc, nil
}

// RepoID derives the repository id from a file name: "team-a.yaml" is "team-a"
func RepoID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isRepoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(path), ".")
	}
	return false
}

// Watcher mirrors a directory of config repository files into a Sink. Each
// YAML file is one repository. Only repositories loaded by the watcher are
// removed when their file disappears.
type Watcher struct {
	dir      string
	sink     Sink
	debounce time.Duration
	logger   zerolog.Logger

	// mu guards loaded and serializes syncs
	mu     sync.Mutex
	loaded map[string][32]byte

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	// timerMu guards the debounce timer; no sync starts once stopped is set
	timerMu sync.Mutex
	timer   *time.Timer
	stopped bool
	syncing sync.WaitGroup
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, sink Sink) *Watcher {
	return &Watcher{
		dir:      dir,
		sink:     sink,
		debounce: DefaultDebounce,
		logger:   log.WithComponent("configrepo"),
		loaded:   make(map[string][32]byte),
	}
}

// Loaded returns the ids of the repositories currently applied, sorted
func (w *Watcher) Loaded() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.loaded))
	for id := range w.loaded {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Sync loads every repository file in the directory, applies new or changed
// ones and removes repositories whose file is gone. A file that fails to parse
// or apply is skipped and retried on the next sync. Sync fails only when the
// directory cannot be read.
func (w *Watcher) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentConfigRepo, false, err.Error())
		return fmt.Errorf("failed to read config repository directory: %w", err)
	}

	present := make(map[string]bool)
	failed := 0
	for _, entry := range entries {
		path := filepath.Join(w.dir, entry.Name())
		if entry.IsDir() || !isRepoFile(path) {
			continue
		}
		id := RepoID(path)
		present[id] = true

		if err := w.apply(id, path); err != nil {
			failed++
			metrics.ConfigRepoSyncsTotal.WithLabelValues(ResultFailed).Inc()
			w.logger.Warn().
				Err(err).
				Str("config_repo", id).
				Str("file", path).
				Msg("Config repository not applied")
		}
	}

	for id := range w.loaded {
		if present[id] {
			continue
		}
		if err := w.sink.RemoveConfigRepo(id); err != nil && !config.IsNotFound(err) {
			failed++
			metrics.ConfigRepoSyncsTotal.WithLabelValues(ResultFailed).Inc()
			w.logger.Warn().Err(err).Str("config_repo", id).Msg("Config repository not removed")
			continue
		}
		delete(w.loaded, id)
		metrics.ConfigRepoSyncsTotal.WithLabelValues(ResultRemoved).Inc()
		w.logger.Info().Str("config_repo", id).Msg("Config repository removed")
	}

	metrics.UpdateComponent(metrics.ComponentConfigRepo, true,
		fmt.Sprintf("%d loaded, %d failed", len(w.loaded), failed))
	return nil
}

func (w *Watcher) apply(id, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	sum := blake3.Sum256(data)
	if prev, ok := w.loaded[id]; ok && prev == sum {
		metrics.ConfigRepoSyncsTotal.WithLabelValues(ResultUnchanged).Inc()
		return nil
	}

	doc, err := Parse(data)
	if err != nil {
		return err
	}
	if err := w.sink.UpsertConfigRepo(id, doc.Pipelines, doc.Environments); err != nil {
		return err
	}

	w.loaded[id] = sum
	metrics.ConfigRepoSyncsTotal.WithLabelValues(ResultApplied).Inc()
	w.logger.Info().
		Str("config_repo", id).
		Int("environments", len(doc.Environments)).
		Int("pipelines", len(doc.Pipelines)).
		Msg("Config repository applied")
	return nil
}

// Start runs an initial sync and then follows file changes in the directory
// until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	metrics.RegisterComponent(metrics.ComponentConfigRepo, false, "starting")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.watcher = watcher

	if err := w.Sync(); err != nil {
		_ = watcher.Close()
		return err
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	w.logger.Info().Str("dir", w.dir).Msg("Watching config repositories")
	return nil
}

// Stop stops following file changes. A pending debounced sync is cancelled
// and one already running is waited for.
func (w *Watcher) Stop() {
	w.timerMu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.wg.Wait()
	w.syncing.Wait()
}

// scheduleSync restarts the debounce window
func (w *Watcher) scheduleSync() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.debouncedSync)
}

func (w *Watcher) debouncedSync() {
	w.timerMu.Lock()
	if w.stopped {
		w.timerMu.Unlock()
		return
	}
	w.syncing.Add(1)
	w.timerMu.Unlock()
	defer w.syncing.Done()

	if err := w.Sync(); err != nil {
		log.Errorf("Config repository sync failed", err)
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isRepoFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Config repository file changed")

			w.scheduleSync()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
