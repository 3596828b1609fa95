package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/internal/model"
)

// FixtureStore serves a YAML catalog file and swaps in a fresh MemoryStore
// whenever the file changes. A failed reload keeps the previous snapshot.
type FixtureStore struct {
	path     string
	provider embedding.Provider
	current  atomic.Pointer[MemoryStore]
}

func OpenFixture(ctx context.Context, path string, provider embedding.Provider) (*FixtureStore, error) {
	s := &FixtureStore{path: path, provider: provider}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the catalog file and atomically replaces the snapshot.
func (s *FixtureStore) Reload(ctx context.Context) error {
	start := time.Now()

	catalog, err := LoadCatalog(s.path)
	if err != nil {
		return fmt.Errorf("load fixture %s: %w", s.path, err)
	}
	mem, err := NewMemoryStore(ctx, catalog, s.provider)
	if err != nil {
		return fmt.Errorf("load fixture %s: %w", s.path, err)
	}
	s.current.Store(mem)

	slog.InfoContext(ctx, "fixture catalog loaded",
		"path", s.path,
		"items", len(catalog.Items),
		"contexts", len(catalog.Contexts),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Watch reloads the catalog on every write to the fixture file until ctx is
// done. The parent directory is watched so that editors replacing the file
// by rename are picked up too.
func (s *FixtureStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				slog.WarnContext(ctx, "fixture reload failed, keeping previous catalog",
					"path", s.path,
					"error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fixture watcher error", "error", err)
		}
	}
}

// Snapshot returns the catalog currently being served.
func (s *FixtureStore) Snapshot() KnowledgeGraph {
	return s.current.Load()
}

func (s *FixtureStore) SearchContexts(ctx context.Context, vec []float32, k int, minScore float64) ([]model.Context, error) {
	return s.current.Load().SearchContexts(ctx, vec, k, minScore)
}

func (s *FixtureStore) ListContexts(ctx context.Context) ([]model.Context, error) {
	return s.current.Load().ListContexts(ctx)
}

func (s *FixtureStore) ConstraintsForContexts(ctx context.Context, contextIDs []string) ([]model.Constraint, error) {
	return s.current.Load().ConstraintsForContexts(ctx, contextIDs)
}

func (s *FixtureStore) SearchItems(ctx context.Context, text string) ([]model.Item, error) {
	return s.current.Load().SearchItems(ctx, text)
}

func (s *FixtureStore) ItemsByCategory(ctx context.Context, category string) ([]model.Item, error) {
	return s.current.Load().ItemsByCategory(ctx, category)
}

func (s *FixtureStore) DiscriminatorLinks(ctx context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error) {
	return s.current.Load().DiscriminatorLinks(ctx, propertyKeys)
}

func (s *FixtureStore) RisksForContexts(ctx context.Context, contextIDs []string) ([]model.Risk, error) {
	return s.current.Load().RisksForContexts(ctx, contextIDs)
}

func (s *FixtureStore) Mitigations(ctx context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error) {
	return s.current.Load().Mitigations(ctx, itemIDs, riskIDs)
}

func (s *FixtureStore) StrategiesForContexts(ctx context.Context, contextIDs []string) ([]model.Strategy, error) {
	return s.current.Load().StrategiesForContexts(ctx, contextIDs)
}

func (s *FixtureStore) StrategiesForItems(ctx context.Context, itemIDs []string) ([]model.Strategy, error) {
	return s.current.Load().StrategiesForItems(ctx, itemIDs)
}
