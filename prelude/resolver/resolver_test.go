package resolver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
	"github.com/kadena-community/pact-toolbox-sub005/prelude"
	"github.com/kadena-community/pact-toolbox-sub005/prelude/cachestore"
	"github.com/kadena-community/pact-toolbox-sub005/prelude/hash"
)

// fakeFetcher materializes a single stub file per base repo into destDir
// and records how many times each base repo key was fetched, so tests can
// assert the single-download guarantee.
type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher { return &fakeFetcher{calls: make(map[string]int)} }

func (f *fakeFetcher) Fetch(ctx context.Context, parsed prelude.ParsedURI, destDir string, force bool) error {
	f.mu.Lock()
	f.calls[parsed.BaseRepoKey()]++
	f.mu.Unlock()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	target := destDir
	if parsed.Subpath != "" {
		target = filepath.Join(destDir, filepath.FromSlash(parsed.Subpath))
	}
	if parsed.IsSingleFile() {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, []byte("(module coin GOVERNANCE)"), 0o644)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(target, "coin.pact"), []byte("(module coin GOVERNANCE)"), 0o644)
}

func (f *fakeFetcher) callCount(baseKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[baseKey]
}

func newTestResolver(t *testing.T, fetcher *fakeFetcher) (*Resolver, *cachestore.Store) {
	t.Helper()
	preludesDir := t.TempDir()
	scratchDir := t.TempDir()
	store := cachestore.New(preludesDir, hash.New(32), pactlog.NewNop())
	return New(preludesDir, scratchDir, fetcher, store, pactlog.NewNop()), store
}

// TestDownloadAllPreludesSingleFetchPerBaseRepo covers invariant 8: two
// specs sharing a base repo key (differing only by subpath) cause exactly
// one Fetch call.
func TestDownloadAllPreludesSingleFetchPerBaseRepo(t *testing.T) {
	fetcher := newFakeFetcher()
	r, _ := newTestResolver(t, fetcher)

	p := prelude.Prelude{
		Name: "kadena",
		Specs: prelude.PreludeSpecs{Flat: []prelude.PreludeSpec{
			{URI: "github:kadena-io/kadena-contracts/root/coin/coin.pact", Name: "coin"},
			{URI: "github:kadena-io/kadena-contracts/root/coin", Name: "coin2"},
		}},
	}

	err := r.DownloadAllPreludes(context.Background(), []prelude.Prelude{p})
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.callCount("github:kadena-io/kadena-contracts#"))
}

func TestDownloadAllPreludesUpdatesCache(t *testing.T) {
	fetcher := newFakeFetcher()
	r, store := newTestResolver(t, fetcher)

	p := prelude.Prelude{
		Name: "kadena",
		Specs: prelude.PreludeSpecs{Flat: []prelude.PreludeSpec{
			{URI: "github:kadena-io/kadena-contracts/root/coin/coin.pact", Name: "coin"},
		}},
	}

	require.NoError(t, r.DownloadAllPreludes(context.Background(), []prelude.Prelude{p}))
	require.True(t, store.IsPreludeCached("kadena", "", false))
}

func TestShouldDownloadPreludesFalseAfterMaterialization(t *testing.T) {
	fetcher := newFakeFetcher()
	r, _ := newTestResolver(t, fetcher)

	p := prelude.Prelude{
		Name: "kadena",
		Specs: prelude.PreludeSpecs{Flat: []prelude.PreludeSpec{
			{URI: "github:kadena-io/kadena-contracts/root/coin/coin.pact", Name: "coin"},
		}},
	}

	require.True(t, r.ShouldDownloadPreludes([]prelude.Prelude{p}))
	require.NoError(t, r.DownloadAllPreludes(context.Background(), []prelude.Prelude{p}))
	require.False(t, r.ShouldDownloadPreludes([]prelude.Prelude{p}))
}

func TestMaterializeRecursesThroughRequires(t *testing.T) {
	fetcher := newFakeFetcher()
	r, _ := newTestResolver(t, fetcher)

	p := prelude.Prelude{
		Name: "kadena",
		Specs: prelude.PreludeSpecs{Flat: []prelude.PreludeSpec{
			{
				URI:  "github:kadena-io/kadena-contracts/root/coin/coin.pact",
				Name: "coin",
				Requires: []prelude.PreludeSpec{
					{URI: "github:kadena-io/fungible-v2/root/fungible-v2/fungible-v2.pact", Name: "fungible-v2"},
				},
			},
		}},
	}

	entries, err := r.materializePrelude(context.Background(), p, make(map[string]struct{}))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestDownloadAllPreludesFetchFailureWrapsError(t *testing.T) {
	failing := &failingFetcher{}
	preludesDir := t.TempDir()
	scratchDir := t.TempDir()
	store := cachestore.New(preludesDir, hash.New(32), pactlog.NewNop())
	r := New(preludesDir, scratchDir, failing, store, pactlog.NewNop())

	p := prelude.Prelude{
		Name: "kadena",
		Specs: prelude.PreludeSpecs{Flat: []prelude.PreludeSpec{
			{URI: "github:kadena-io/kadena-contracts/root/coin/coin.pact", Name: "coin"},
		}},
	}

	err := r.DownloadAllPreludes(context.Background(), []prelude.Prelude{p})
	require.Error(t, err)
}

type failingFetcher struct{}

func (failingFetcher) Fetch(ctx context.Context, parsed prelude.ParsedURI, destDir string, force bool) error {
	return os.ErrNotExist
}
