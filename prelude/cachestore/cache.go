// Package cachestore implements the Cache Store component: a versioned
// JSON document at "<preludesDir>/.cache.json" tracking which preludes have
// been materialized and validated. Serialization uses
// github.com/goccy/go-json (a drop-in encoding/json replacement present in
// the teacher's dependency set); the write-then-rename is guarded by
// github.com/gofrs/flock so two concurrent downloadAllPreludes calls don't
// interleave partial writes.
package cachestore

import (
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
	"github.com/kadena-community/pact-toolbox-sub005/prelude/hash"
)

// CacheVersion is the only schema version this Store understands. Any
// on-disk document with a different version is discarded, per spec.md §3's
// "version mismatch -> cache is discarded" invariant.
const CacheVersion = "1.0.0"

// SpecEntry records one materialized file within a cached prelude.
type SpecEntry struct {
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Checksum  string `json:"checksum"`
	LocalPath string `json:"localPath"`
}

// Entry records one cached prelude.
type Entry struct {
	Name         string      `json:"name"`
	Version      string      `json:"version,omitempty"`
	Checksum     string      `json:"checksum"`
	DownloadedAt int64       `json:"downloadedAt"`
	Specs        []SpecEntry `json:"specs"`
}

// Document is the full on-disk shape of .cache.json.
type Document struct {
	Version string           `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

func emptyDocument() Document {
	return Document{Version: CacheVersion, Entries: make(map[string]Entry)}
}

// Stats is the aggregate view returned by GetCacheStats.
type Stats struct {
	TotalEntries int
	TotalSize    int64
	OldestEntry  *StatEntry
	NewestEntry  *StatEntry
}

// StatEntry names one extremal cache entry by recency.
type StatEntry struct {
	Name         string
	DownloadedAt int64
	AgeDays      int
}

// Store owns one preludesDir's .cache.json.
type Store struct {
	preludesDir string
	hasher      *hash.Hasher
	logger      pactlog.Logger
	now         func() time.Time
}

// New builds a Store rooted at preludesDir. hasher is reused across calls;
// the Store invalidates a path's memoized digest before every hash it
// computes, so each validation re-reads the file.
func New(preludesDir string, hasher *hash.Hasher, logger pactlog.Logger) *Store {
	return &Store{preludesDir: preludesDir, hasher: hasher, logger: logger, now: time.Now}
}

func (s *Store) path() string {
	return filepath.Join(s.preludesDir, ".cache.json")
}

func (s *Store) lockPath() string {
	return s.path() + ".lock"
}

// Load reads and parses .cache.json. A missing file, malformed JSON, or a
// version mismatch all yield an empty, valid document without error — the
// cache is an optimisation and never surfaces load failures to callers.
func (s *Store) Load() Document {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return emptyDocument()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("prelude cache malformed, resetting", "path", s.path(), "err", err)
		return emptyDocument()
	}
	if doc.Version != CacheVersion {
		s.logger.Warn("prelude cache version mismatch, resetting", "path", s.path(), "have", doc.Version, "want", CacheVersion)
		return emptyDocument()
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]Entry)
	}
	return doc
}

// Save serializes doc and writes it atomically (temp file + rename),
// guarded by an advisory file lock. Save errors are logged and swallowed:
// the cache is an optimisation, never load-bearing for correctness.
func (s *Store) Save(doc Document) {
	lock := flock.New(s.lockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		s.logger.Warn("prelude cache save: could not acquire lock", "err", err)
		return
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Warn("prelude cache save: marshal failed", "err", err)
		return
	}

	if err := os.MkdirAll(s.preludesDir, 0o755); err != nil {
		s.logger.Warn("prelude cache save: mkdir failed", "err", err)
		return
	}

	tmp, err := os.CreateTemp(s.preludesDir, ".cache.json.tmp-*")
	if err != nil {
		s.logger.Warn("prelude cache save: tempfile failed", "err", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Warn("prelude cache save: write failed", "err", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.logger.Warn("prelude cache save: close failed", "err", err)
		return
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		s.logger.Warn("prelude cache save: rename failed", "err", err)
		return
	}
}

// UpdatePreludeCache merges a prelude's entry into the cache: any spec
// without a checksum has one computed now (empty string if the file is
// unreadable), and the entry is replaced wholesale with a fresh
// downloadedAt timestamp.
func (s *Store) UpdatePreludeCache(name, version string, specs []SpecEntry) {
	doc := s.Load()

	resolved := make([]SpecEntry, len(specs))
	for i, sp := range specs {
		if sp.Checksum == "" {
			// A path can be reused across downloads (the same materialized
			// location refreshed with new content); invalidate any stale
			// memo before computing the checksum that gets persisted.
			s.hasher.Invalidate(sp.LocalPath)
			if sum, err := s.hasher.HashFile(sp.LocalPath); err == nil {
				sp.Checksum = sum
			} else {
				sp.Checksum = ""
			}
		}
		resolved[i] = sp
	}

	doc.Entries[name] = Entry{
		Name:         name,
		Version:      version,
		Checksum:     entryDigest(resolved),
		DownloadedAt: s.now().UnixMilli(),
		Specs:        resolved,
	}
	s.Save(doc)
}

// entryDigest is the prelude-level checksum stored alongside each entry: a
// content digest over the concatenation of every spec's own checksum, so
// the entry-level checksum changes iff any spec's file contents change.
func entryDigest(specs []SpecEntry) string {
	var buf []byte
	for _, sp := range specs {
		buf = append(buf, []byte(sp.Name)...)
		buf = append(buf, ':')
		buf = append(buf, []byte(sp.Checksum)...)
		buf = append(buf, '\n')
	}
	return hash.HashBytes(buf)
}

// IsPreludeCached reports whether name (optionally pinned to version) is
// fully materialized and, unless skipChecksum is set, whether every spec
// file's current SHA-256 still matches its recorded checksum.
func (s *Store) IsPreludeCached(name, version string, skipChecksum bool) bool {
	doc := s.Load()
	entry, ok := doc.Entries[name]
	if !ok {
		return false
	}
	if version != "" && entry.Version != version {
		return false
	}
	for _, sp := range entry.Specs {
		info, err := os.Stat(sp.LocalPath)
		if err != nil || info.IsDir() {
			return false
		}
		if skipChecksum {
			continue
		}
		// The Store's hasher is long-lived across many validations, so a
		// memoized digest from an earlier call would hide any modification
		// made to the file since. Invalidate before re-hashing so a tamper
		// is always observed.
		s.hasher.Invalidate(sp.LocalPath)
		sum, err := s.hasher.HashFile(sp.LocalPath)
		if err != nil || sum != sp.Checksum {
			return false
		}
	}
	return true
}

// ClearPreludeCache writes an empty cache document.
func (s *Store) ClearPreludeCache() {
	s.Save(emptyDocument())
}

// RemovePreludeFromCache deletes one entry, leaving the rest of the
// document untouched.
func (s *Store) RemovePreludeFromCache(name string) {
	doc := s.Load()
	delete(doc.Entries, name)
	s.Save(doc)
}

// GetCacheStats summarizes the cache file: entry count, serialized file
// size, and the oldest/newest entries by downloadedAt.
func (s *Store) GetCacheStats() Stats {
	doc := s.Load()
	stats := Stats{TotalEntries: len(doc.Entries)}

	if info, err := os.Stat(s.path()); err == nil {
		stats.TotalSize = info.Size()
	}

	nowMs := s.now().UnixMilli()
	for name, entry := range doc.Entries {
		se := &StatEntry{
			Name:         name,
			DownloadedAt: entry.DownloadedAt,
			AgeDays:      int((nowMs - entry.DownloadedAt) / (24 * 60 * 60 * 1000)),
		}
		if stats.OldestEntry == nil || entry.DownloadedAt < stats.OldestEntry.DownloadedAt {
			stats.OldestEntry = se
		}
		if stats.NewestEntry == nil || entry.DownloadedAt > stats.NewestEntry.DownloadedAt {
			stats.NewestEntry = se
		}
	}
	return stats
}
