// Package resolver implements the Prelude Resolver: grouping specs by base
// repo key to guarantee one fetch per repository, materializing files into
// the runtime's expected layout, and updating the cache once each prelude
// is fully in place.
package resolver

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
	"github.com/kadena-community/pact-toolbox-sub005/prelude"
	"github.com/kadena-community/pact-toolbox-sub005/prelude/cachestore"
	"github.com/kadena-community/pact-toolbox-sub005/prelude/fetch"
)

// Resolver materializes a set of Preludes under preludesDir and keeps the
// Cache Store current.
type Resolver struct {
	preludesDir string
	scratchDir  string // "<.pact-toolbox>/tmp", per spec.md §4.8 step 3
	fetcher     fetch.Fetcher
	cache       *cachestore.Store
	logger      pactlog.Logger
}

// New builds a Resolver. scratchDir is the working directory each base
// repo is cloned into once before specs are copied out of it.
func New(preludesDir, scratchDir string, fetcher fetch.Fetcher, cache *cachestore.Store, logger pactlog.Logger) *Resolver {
	return &Resolver{
		preludesDir: preludesDir,
		scratchDir:  scratchDir,
		fetcher:     fetcher,
		cache:       cache,
		logger:      logger,
	}
}

// DownloadAllPreludes materializes every prelude in preludes. A fetch
// failure is fatal for the prelude containing it (spec.md §4.8's
// PreludeDownloadFailed); preludes already fully materialized before the
// failing one are left intact, matching the "no partial rollback" design.
//
// downloaded tracks, across the whole call, which base repo keys have
// already been fetched into the scratch directory — this is the
// single-download guarantee invariant 8 in spec.md §8: two specs sharing a
// base repo key result in exactly one Fetcher.Fetch call.
func (r *Resolver) DownloadAllPreludes(ctx context.Context, preludes []prelude.Prelude) error {
	downloaded := make(map[string]struct{})

	for _, p := range preludes {
		specEntries, err := r.materializePrelude(ctx, p, downloaded)
		if err != nil {
			return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "prelude %q: %v", p.Name, err)
		}
		r.cache.UpdatePreludeCache(p.Name, "", specEntries)
	}
	return nil
}

func (r *Resolver) materializePrelude(ctx context.Context, p prelude.Prelude, downloaded map[string]struct{}) ([]cachestore.SpecEntry, error) {
	var entries []cachestore.SpecEntry

	for _, fs := range p.Flatten() {
		specEntries, err := r.materializeSpecRecursive(ctx, p.Name, fs.Prelude, fs.Group, downloaded)
		if err != nil {
			return nil, err
		}
		entries = append(entries, specEntries...)
	}
	return entries, nil
}

func (r *Resolver) materializeSpecRecursive(ctx context.Context, preludeName string, spec prelude.PreludeSpec, group string, downloaded map[string]struct{}) ([]cachestore.SpecEntry, error) {
	parsed, err := prelude.ParseURI(spec.URI)
	if err != nil {
		return nil, err
	}

	baseKey := parsed.BaseRepoKey()
	scratchRepoDir := filepath.Join(r.scratchDir, sanitizeKey(baseKey))

	if _, ok := downloaded[baseKey]; !ok {
		if err := r.fetcher.Fetch(ctx, parsed, scratchRepoDir, true); err != nil {
			return nil, err
		}
		downloaded[baseKey] = struct{}{}
	}

	destDir := filepath.Join(r.preludesDir, preludeName, group)
	localPath, err := materializeSubpath(scratchRepoDir, parsed, destDir, spec.Name)
	if err != nil {
		return nil, err
	}

	entries := []cachestore.SpecEntry{{
		Name:      spec.Name,
		URI:       spec.URI,
		LocalPath: localPath,
	}}

	for _, req := range spec.Requires {
		reqGroup := req.Group
		if reqGroup == "" {
			reqGroup = group
		}
		sub, err := r.materializeSpecRecursive(ctx, preludeName, req, reqGroup, downloaded)
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}
	return entries, nil
}

// materializeSubpath copies either a single ".pact" file or a directory
// tree from the scratch clone into destDir/specName, per spec.md §4.8
// step 4, and returns the path the file (or directory root) now lives at.
func materializeSubpath(scratchRepoDir string, parsed prelude.ParsedURI, destDir, specName string) (string, error) {
	src := scratchRepoDir
	if parsed.Subpath != "" {
		src = filepath.Join(scratchRepoDir, filepath.FromSlash(parsed.Subpath))
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", pacterrors.Wrapf(err, "locating %s", src)
	}

	if parsed.IsSingleFile() || !info.IsDir() {
		dest := filepath.Join(destDir, specName)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", err
		}
		if err := copyFile(src, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	dest := filepath.Join(destDir, specName)
	if err := copyTree(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// sanitizeKey turns a base repo key into a filesystem-safe directory name.
func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch r {
		case '/', ':', '#':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// ShouldDownloadPreludes reports whether any of preludes is not fully
// cached, per spec.md §4.9.
func (r *Resolver) ShouldDownloadPreludes(preludes []prelude.Prelude) bool {
	for _, p := range preludes {
		if !r.cache.IsPreludeCached(p.Name, "", false) {
			return true
		}
	}
	return false
}
