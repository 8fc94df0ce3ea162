package server

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/promlog"
)

// Logger implements Go Kit's log.Logger interface. It supports being
// dynamically updated at runtime.
type Logger struct {
	w io.Writer

	mut sync.RWMutex
	l   log.Logger
}

// NewLogger creates a new Logger writing to stderr.
func NewLogger(cfg *Config) (*Logger, error) {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg *Config) (*Logger, error) {
	inner, err := makeDefaultLogger(w, cfg)
	if err != nil {
		return nil, err
	}
	return &Logger{w: w, l: inner}, nil
}

// ApplyConfig applies configuration changes to the logger.
func (l *Logger) ApplyConfig(cfg *Config) error {
	newLogger, err := makeDefaultLogger(l.w, cfg)
	if err != nil {
		return err
	}

	l.mut.Lock()
	defer l.mut.Unlock()
	l.l = newLogger
	return nil
}

func makeDefaultLogger(w io.Writer, cfg *Config) (log.Logger, error) {
	var lvl promlog.AllowedLevel
	if err := lvl.Set(cfg.LogLevel); err != nil {
		return nil, err
	}
	var format promlog.AllowedFormat
	if err := format.Set(cfg.LogFormat); err != nil {
		return nil, err
	}

	var l log.Logger
	if format.String() == "json" {
		l = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		l = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	l = level.NewFilter(l, levelOption(lvl.String()))

	// Log calls go through the level wrapper and Logger before reaching l,
	// so two extra frames are skipped.
	return log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5)), nil
}

func levelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Log implements log.Logger.
func (l *Logger) Log(kvps ...interface{}) error {
	l.mut.RLock()
	defer l.mut.RUnlock()
	return l.l.Log(kvps...)
}
