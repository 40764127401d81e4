// Package hash implements the File Hasher leaf component: SHA-256 of a
// file's bytes, consistent across platforms (no newline translation, no
// path-dependent behavior). A per-run memoization cache avoids re-hashing
// the same materialized path twice within one resolve/validate pass, using
// github.com/hashicorp/golang-lru/v2 from the teacher's dependency set.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Hasher computes and memoizes SHA-256 checksums of materialized files.
type Hasher struct {
	memo *lru.Cache[string, string]
}

// New builds a Hasher with a bounded memoization cache. size bounds the
// number of distinct paths remembered. A Hasher is typically long-lived,
// shared across many downloadAllPreludes/isPreludeCached calls against the
// same Store; callers that re-validate a path whose file may have changed
// since it was last hashed must call Invalidate first, or the memoized
// digest will mask the change.
func New(size int) *Hasher {
	c, _ := lru.New[string, string](size)
	return &Hasher{memo: c}
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the lowercase hex SHA-256 digest of the file at path. An
// unreadable file is reported via err; callers that must tolerate a
// missing file (per spec.md §4.9's "checksum = \"\" on unreadable file")
// translate err into an empty checksum themselves rather than have this
// function swallow it.
func (h *Hasher) HashFile(path string) (string, error) {
	if h.memo != nil {
		if v, ok := h.memo.Get(path); ok {
			return v, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	digest := hex.EncodeToString(sum.Sum(nil))

	if h.memo != nil {
		h.memo.Add(path, digest)
	}
	return digest, nil
}

// Invalidate drops any memoized digest for path, used after a file at path
// is (re)written so a subsequent HashFile call recomputes it.
func (h *Hasher) Invalidate(path string) {
	if h.memo != nil {
		h.memo.Remove(path)
	}
}
