// Package pactlog provides the leveled, structured logging capability used
// throughout the mining trigger and prelude engine. The interface mirrors
// go-ethereum's log.Logger calling convention (message plus variadic
// key/value pairs) since every worker loop in this module logs the same way
// the teacher's worker loops do.
package pactlog

import (
	"io"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the capability interface every component takes by injection.
// Nothing in this module holds a package-level default; callers construct
// one (or NewNop) and pass it down through mining.NewOrchestrator /
// cachestore.New / resolver.New.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)

	// With returns a derived Logger that always includes the given
	// key/value pairs, matching go-ethereum's log.Logger.With.
	With(ctx ...any) Logger
}

// kitLogger adapts a go-kit/log.Logger (logfmt output) to the Logger
// interface. go-kit/log has no built-in notion of "trace" severity, so
// trace maps onto debug's go-kit level with an extra "lvl=trace" field.
type kitLogger struct {
	base kitlog.Logger
}

// New builds a Logger that writes logfmt lines to w via go-kit/log +
// go-logfmt/logfmt, the same combination present in the teacher's
// dependency set.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	out := kitlog.NewLogfmtLogger(w)
	out = kitlog.With(out, "ts", kitlog.DefaultTimestampUTC)
	return &kitLogger{base: out}
}

// NewNop returns a Logger that discards everything, for tests and for
// embedding contexts that inject their own sink later.
func NewNop() Logger {
	return &kitLogger{base: kitlog.NewNopLogger()}
}

func (l *kitLogger) log(leveled kitlog.Logger, msg string, ctx ...any) {
	_ = leveled.Log(append([]any{"msg", msg}, ctx...)...)
}

func (l *kitLogger) Trace(msg string, ctx ...any) {
	l.log(level.Debug(l.base), msg, append(append([]any{}, ctx...), "lvl", "trace")...)
}
func (l *kitLogger) Debug(msg string, ctx ...any) { l.log(level.Debug(l.base), msg, ctx...) }
func (l *kitLogger) Info(msg string, ctx ...any)  { l.log(level.Info(l.base), msg, ctx...) }
func (l *kitLogger) Warn(msg string, ctx ...any)  { l.log(level.Warn(l.base), msg, ctx...) }
func (l *kitLogger) Error(msg string, ctx ...any) { l.log(level.Error(l.base), msg, ctx...) }

func (l *kitLogger) With(ctx ...any) Logger {
	return &kitLogger{base: kitlog.With(l.base, ctx...)}
}
