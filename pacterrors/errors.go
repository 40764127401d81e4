// Package pacterrors names the abstract error kinds from the mining
// trigger / prelude engine design (static config checks, proxy transport
// failures, worker-internal recoveries, fatal prelude downloads) as
// sentinel errors, wrapped with stack-capturing context via
// github.com/cockroachdb/errors the way the teacher's dependency set
// favors over bare fmt.Errorf chains.
package pacterrors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel kinds. Use errors.Is against these, never string comparison.
var (
	// ErrConfigInvalid is returned by Orchestrator.Start when the supplied
	// MiningTriggerConfig fails static validation. Fatal: Start() fails.
	ErrConfigInvalid = errors.New("mining: invalid configuration")

	// ErrProxyTransport marks a transport-level failure while forwarding a
	// /send submission downstream. Fatal for the request only.
	ErrProxyTransport = errors.New("mining: proxy transport error")

	// ErrMiningRequestFailed marks a non-200 status or transport failure
	// talking to the mining client's /make-blocks endpoint. Non-fatal:
	// callers log at warn and continue.
	ErrMiningRequestFailed = errors.New("mining: block request failed")

	// ErrWorkerInternal names the worker-internal error kind. The
	// confirmation and idle worker loops do not construct it: they log and
	// emit the underlying error as an `error` event before their 5s
	// backoff, and never propagate it to the orchestrator.
	ErrWorkerInternal = errors.New("mining: worker internal error")

	// ErrCacheCorrupt documents the kind recovered silently by resetting
	// the prelude cache to empty; the cache store never actually returns
	// this error, since corruption recovery is unconditional, but the
	// sentinel documents the design intent for anyone reading the
	// fallback path in the cache loader.
	ErrCacheCorrupt = errors.New("prelude: cache corrupt")

	// ErrPreludeDownloadFailed is fatal for the enclosing
	// DownloadAllPreludes call.
	ErrPreludeDownloadFailed = errors.New("prelude: download failed")
)

// Wrap attaches msg as context to err via cockroachdb/errors, preserving
// the original error for errors.Is/As and capturing a stack trace at the
// call site.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with Printf-style formatting.
func Wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

// Is is re-exported so callers need only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }
