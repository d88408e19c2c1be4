// Package applog sets up the process-wide structured logger.
package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultName = "trainwatch"
	dateLayout  = "2006-01-02"
	defaultKeep = 7
)

// Rotator is an io.Writer over <dir>/<name>-<date>.log that switches files
// at each calendar day. Files of the same name beyond keep are pruned; files
// written under other names in the same directory are left alone.
type Rotator struct {
	mu   sync.Mutex
	dir  string
	name string
	keep int
	date string
	file *os.File
	now  func() time.Time
}

func NewRotator(dir, name string, keep int) *Rotator {
	if name == "" {
		name = DefaultName
	}
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Rotator{dir: dir, name: name, keep: keep, now: time.Now}
}

// SetNow replaces the time source. Used in tests only.
func (r *Rotator) SetNow(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}

// Path is the file the next write on day t goes to.
func (r *Rotator) Path(t time.Time) string {
	return filepath.Join(r.dir, r.name+"-"+t.Format(dateLayout)+".log")
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if today := now.Format(dateLayout); today != r.date {
		if err := r.openDay(now); err != nil {
			return 0, err
		}
	}
	return r.file.Write(p)
}

func (r *Rotator) openDay(now time.Time) error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
	f, err := os.OpenFile(r.Path(now), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	r.file = f
	r.date = now.Format(dateLayout)
	r.prune()
	return nil
}

// ownFiles lists this rotator's files, oldest first. "trainwatch-*.log"
// also matches "trainwatch-serve-*.log", so the suffix must parse as a date.
func (r *Rotator) ownFiles() []string {
	matches, err := filepath.Glob(filepath.Join(r.dir, r.name+"-*.log"))
	if err != nil {
		return nil
	}
	var own []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), r.name+"-"), ".log")
		if _, err := time.Parse(dateLayout, stamp); err == nil {
			own = append(own, m)
		}
	}
	sort.Strings(own)
	return own
}

func (r *Rotator) prune() {
	own := r.ownFiles()
	if len(own) <= r.keep {
		return
	}
	for _, f := range own[:len(own)-r.keep] {
		os.Remove(f)
	}
}

// Close closes the current log file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

type InitConfig struct {
	LogDir   string
	LogLevel string
	// Name prefixes the log files. The server and the dashboard use
	// different names so that running both never interleaves one file.
	Name string
	// Format is "text" (default) or "json".
	Format   string
	KeepDays int
	// Echo additionally copies every record to this writer. The dashboard
	// leaves it nil because it owns the terminal; the server sets os.Stderr.
	Echo io.Writer
}

// Init points slog.Default and the stdlib log package at a rotating file in
// cfg.LogDir. The returned io.Closer must be deferred by the caller.
func Init(cfg InitConfig) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := NewRotator(cfg.LogDir, cfg.Name, cfg.KeepDays)
	var out io.Writer = rotator
	if cfg.Echo != nil {
		out = io.MultiWriter(rotator, cfg.Echo)
	}
	logger := slog.New(NewHandler(out, cfg.Format, ParseLevel(cfg.LogLevel)))
	slog.SetDefault(logger)
	log.SetOutput(out)
	log.SetFlags(0)
	return logger, rotator, nil
}

// NewHandler builds the slog handler for format.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a level string to slog.Level. Defaults to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
