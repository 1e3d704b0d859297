// Package corelog wires the engine's error/access logging onto a leveled
// backend, the way the rest of the example fleet layers structured logging
// on top of a third-party leveled logger instead of hand-rolling one.
package corelog

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where error/access log lines go and how verbose they are.
type Config struct {
	// Level is one of "trace", "debug", "info", "warn", "error".
	Level string
	// Name prefixes every line, e.g. "core" or "access".
	Name string
	// FilePath, when non-empty, routes output through a rotating file
	// sink instead of stderr.
	FilePath string
	// MaxSizeMB, MaxBackups, MaxAgeDays configure rotation; zero values
	// fall back to lumberjack's own defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// JSON selects structured JSON lines over hclog's human format.
	JSON bool
}

// New builds a leveled logger per Config. The returned io.Closer flushes and
// closes the rotating file sink, if one was configured; callers should defer
// its Close on worker shutdown.
func New(cfg Config) (hclog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = lj
		closer = lj
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       cfg.Name,
		Level:      hclog.LevelFromString(cfg.Level),
		Output:     out,
		JSONFormat: cfg.JSON,
	})

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
