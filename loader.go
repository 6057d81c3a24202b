// loader.go: Manifest-driven plugin discovery and loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Candidate is a plugin discovered under a loader root but not necessarily
// loaded. The candidate id is the slash-separated path of the manifest's
// directory relative to its root, so discovery over the same tree always
// produces the same ids.
type Candidate struct {
	ID           string          `json:"id"`
	Root         string          `json:"root"`
	ManifestPath string          `json:"manifest_path"`
	Manifest     *PluginManifest `json:"manifest"`
}

// Loader discovers plugin manifests under configured roots and loads the
// resulting instances into a framework. Construction is resolved through a
// FactoryRegistry; the loader never executes code from the scanned tree.
//
// Safe for concurrent use.
type Loader struct {
	framework *Framework
	factories *FactoryRegistry
	logger    Logger

	mu     sync.RWMutex
	roots  []string
	loaded map[string]string // candidate id -> plugin id
}

// NewLoader creates a loader bound to a framework and factory registry.
// A nil registry gets a fresh empty one.
func NewLoader(framework *Framework, factories *FactoryRegistry, roots ...string) *Loader {
	if factories == nil {
		factories = NewFactoryRegistry()
	}
	return &Loader{
		framework: framework,
		factories: factories,
		logger:    framework.logger.With("component", "loader"),
		roots:     append([]string{}, roots...),
		loaded:    make(map[string]string),
	}
}

// Factories exposes the factory registry for host registration.
func (l *Loader) Factories() *FactoryRegistry {
	return l.factories
}

// AddRoot appends a discovery root. Duplicate roots are ignored.
func (l *Loader) AddRoot(root string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !containsString(l.roots, root) {
		l.roots = append(l.roots, root)
	}
}

// Discover walks every root and returns the valid candidates sorted by id.
// Unparseable manifests are logged and skipped; they never abort the walk.
func (l *Loader) Discover(ctx context.Context) ([]Candidate, error) {
	l.mu.RLock()
	roots := make([]string, len(l.roots))
	copy(roots, l.roots)
	l.mu.RUnlock()

	var candidates []Candidate
	seen := make(map[string]bool)

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			l.logger.Warn("Discovery root unavailable", "root", root, "error", err)
			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				l.logger.Warn("Discovery walk error", "path", path, "error", err)
				return nil
			}
			if d.IsDir() || !isManifestFile(d.Name()) {
				return nil
			}

			manifest, mErr := LoadManifest(path)
			if mErr != nil {
				l.logger.Warn("Skipping invalid manifest", "path", path, "error", mErr)
				return nil
			}

			id := candidateID(root, path)
			if seen[id] {
				l.logger.Warn("Duplicate candidate id, keeping first", "candidate_id", id, "path", path)
				return nil
			}
			seen[id] = true
			candidates = append(candidates, Candidate{
				ID:           id,
				Root:         root,
				ManifestPath: path,
				Manifest:     manifest,
			})
			return nil
		})
		if walkErr != nil {
			return nil, NewDiscoveryError("walking discovery root "+root, walkErr)
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates, nil
}

// ListAvailable returns the discovered candidates without loading any of
// them. Useful for inventory endpoints.
func (l *Loader) ListAvailable(ctx context.Context) ([]Candidate, error) {
	return l.Discover(ctx)
}

// DiscoverAndLoadAll discovers every candidate and loads each one,
// dependency-ordered where manifests declare dependencies between
// candidates. Failures are isolated per candidate: the returned map has one
// entry per candidate with true for loaded and false for failed or skipped,
// and the first walk-level error (not candidate-level) aborts.
func (l *Loader) DiscoverAndLoadAll(ctx context.Context) (map[string]bool, error) {
	candidates, err := l.Discover(ctx)
	if err != nil {
		return nil, err
	}

	ordered := orderByDependencies(candidates)
	results := make(map[string]bool, len(ordered))
	for _, candidate := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if loadErr := l.LoadCandidate(ctx, candidate); loadErr != nil {
			l.logger.Error("Candidate failed to load",
				"candidate_id", candidate.ID,
				"error", loadErr)
			results[candidate.ID] = false
			continue
		}
		results[candidate.ID] = true
	}
	return results, nil
}

// LoadCandidate builds one candidate via the factory registry and loads it
// into the framework.
//
// Construction strategies, in order: a factory registered for the
// manifest's type, a builder registered for the candidate id, a FuncSet
// registered for the candidate id. A candidate nothing can build fails with
// a factory-not-found error.
func (l *Loader) LoadCandidate(ctx context.Context, candidate Candidate) error {
	manifest := candidate.Manifest
	config, err := manifest.EffectiveConfig(nil)
	if err != nil {
		l.dispatchDiscoveryError(ctx, candidate, err)
		return err
	}

	plugin, err := l.build(ctx, candidate, config)
	if err != nil {
		l.dispatchDiscoveryError(ctx, candidate, err)
		return err
	}

	if err := l.framework.LoadPlugin(ctx, plugin); err != nil {
		return err
	}

	l.mu.Lock()
	l.loaded[candidate.ID] = plugin.ID()
	l.mu.Unlock()
	l.logger.Info("Candidate loaded",
		"candidate_id", candidate.ID,
		"plugin_id", plugin.ID(),
		"type", manifest.Type)
	return nil
}

func (l *Loader) build(ctx context.Context, candidate Candidate, config map[string]any) (*PluginInstance, error) {
	manifest := candidate.Manifest

	if factory, ok := l.factories.Factory(manifest.Type); ok {
		plugin, err := factory.CreatePlugin(ctx, manifest, config)
		if err != nil {
			return nil, NewPluginCreationError(candidate.ID, err)
		}
		return plugin, nil
	}
	if builder, ok := l.factories.Builder(candidate.ID); ok {
		plugin, err := builder(ctx, manifest, config)
		if err != nil {
			return nil, NewPluginCreationError(candidate.ID, err)
		}
		return plugin, nil
	}
	if set, ok := l.factories.FuncSetFor(candidate.ID); ok {
		return wrapFuncSet(manifest, config, set), nil
	}
	return nil, NewFactoryNotFoundError(manifest.Type)
}

// ReloadPlugin unloads the plugin a candidate produced and loads the
// candidate again from a fresh discovery pass, picking up manifest changes.
func (l *Loader) ReloadPlugin(ctx context.Context, candidateID string) error {
	l.mu.RLock()
	pluginID, wasLoaded := l.loaded[candidateID]
	l.mu.RUnlock()

	candidates, err := l.Discover(ctx)
	if err != nil {
		return err
	}
	var target *Candidate
	for i := range candidates {
		if candidates[i].ID == candidateID {
			target = &candidates[i]
			break
		}
	}
	if target == nil {
		return NewCandidateUnknownError(candidateID)
	}

	if wasLoaded {
		l.framework.UnloadPlugin(ctx, pluginID)
		l.mu.Lock()
		delete(l.loaded, candidateID)
		l.mu.Unlock()
	}
	return l.LoadCandidate(ctx, *target)
}

// Loaded returns the candidate-to-plugin mapping for successfully loaded
// candidates.
func (l *Loader) Loaded() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.loaded))
	for k, v := range l.loaded {
		out[k] = v
	}
	return out
}

func (l *Loader) dispatchDiscoveryError(ctx context.Context, candidate Candidate, err error) {
	l.framework.dispatchError(ctx, err, ErrorReport{
		Category: ErrorCategoryDiscovery,
		PluginID: candidate.Manifest.Name,
		Context: map[string]any{
			"candidate_id":  candidate.ID,
			"manifest_path": candidate.ManifestPath,
		},
	})
}

func isManifestFile(name string) bool {
	return containsString(manifestFileNames, strings.ToLower(name))
}

// candidateID derives the deterministic candidate id for a manifest path.
// The id is the manifest directory relative to the root with forward
// slashes; a manifest directly in the root uses the root's base name.
func candidateID(root, manifestPath string) string {
	dir := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return filepath.Base(root)
	}
	return filepath.ToSlash(rel)
}

// orderByDependencies sorts candidates so that manifest dependencies load
// before their dependents, preserving id order among unrelated candidates.
// Cyclic or unresolved dependencies keep their id-sorted position and are
// rejected later by the framework's dependency check.
func orderByDependencies(candidates []Candidate) []Candidate {
	byName := make(map[string]int, len(candidates))
	for i, c := range candidates {
		byName[c.Manifest.Name] = i
	}

	var ordered []Candidate
	state := make([]int, len(candidates)) // 0 unvisited, 1 in progress, 2 done

	var visit func(i int)
	visit = func(i int) {
		if state[i] != 0 {
			return
		}
		state[i] = 1
		for _, dep := range candidates[i].Manifest.Dependencies {
			if j, ok := byName[dep]; ok && state[j] == 0 {
				visit(j)
			}
		}
		state[i] = 2
		ordered = append(ordered, candidates[i])
	}
	for i := range candidates {
		visit(i)
	}
	return ordered
}
