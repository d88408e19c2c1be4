package applog_test

import (
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/trainwatch/internal/applog"
)

func day(d int) func() time.Time {
	return func() time.Time { return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC) }
}

func TestRotatorWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewRotator(dir, "", 0)
	defer r.Close()
	r.SetNow(day(9))

	if _, err := r.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "trainwatch-2026-01-09.log")
	if got := r.Path(day(9)()); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "hello\n" {
		t.Errorf("file contents %q, err %v", data, err)
	}
}

func TestRotatorSwitchesFileOnDateChange(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewRotator(dir, "trainwatch", 7)
	defer r.Close()

	r.SetNow(day(1))
	r.Write([]byte("day1\n"))
	r.SetNow(day(2))
	r.Write([]byte("day2\n"))

	matches, _ := filepath.Glob(filepath.Join(dir, "trainwatch-*.log"))
	if len(matches) != 2 {
		t.Errorf("expected 2 log files after rotation, got %d", len(matches))
	}
}

func TestRotatorPrunesOnlyItsOwnFiles(t *testing.T) {
	dir := t.TempDir()

	server := applog.NewRotator(dir, "trainwatch-serve", 7)
	server.SetNow(day(1))
	server.Write([]byte("server\n"))
	server.Close()

	r := applog.NewRotator(dir, "trainwatch", 2)
	for d := 1; d <= 4; d++ {
		r.SetNow(day(d))
		if _, err := r.Write([]byte("entry\n")); err != nil {
			t.Fatal(err)
		}
	}
	r.Close()

	for _, gone := range []string{"trainwatch-2026-01-01.log", "trainwatch-2026-01-02.log"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been pruned", gone)
		}
	}
	for _, kept := range []string{"trainwatch-2026-01-03.log", "trainwatch-2026-01-04.log", "trainwatch-serve-2026-01-01.log"} {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Errorf("%s should survive: %v", kept, err)
		}
	}
}

func TestInitCreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "newlogs")
	_, closer, err := applog.Init(applog.InitConfig{LogDir: dir, LogLevel: "info"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected log dir %q to be created: %v", dir, err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
	}
	for _, tc := range cases {
		if got := applog.ParseLevel(tc.input); got != tc.level {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.input, got, tc.level)
		}
	}
}

func TestInitRedirectsStdlibLog(t *testing.T) {
	dir := t.TempDir()
	_, closer, err := applog.Init(applog.InitConfig{LogDir: dir, Name: "trainwatch-serve"})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	log.Print("stdlib-log-test-marker")

	name := filepath.Join(dir, "trainwatch-serve-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "stdlib-log-test-marker") {
		t.Errorf("stdlib log output not found in log file; file contents: %q", string(data))
	}
}

func TestInitEchoesToWriter(t *testing.T) {
	var echo strings.Builder
	logger, closer, err := applog.Init(applog.InitConfig{LogDir: t.TempDir(), LogLevel: "info", Echo: &echo})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("webserver: listening", "addr", "127.0.0.1:8000")
	logger.Debug("hidden")

	if !strings.Contains(echo.String(), "webserver: listening") {
		t.Errorf("expected echoed record, got %q", echo.String())
	}
	if strings.Contains(echo.String(), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestNewHandlerJSON(t *testing.T) {
	var out strings.Builder
	slog.New(applog.NewHandler(&out, "JSON", slog.LevelInfo)).Info("job created", "job", "abc123")

	var rec map[string]any
	if err := json.Unmarshal([]byte(out.String()), &rec); err != nil {
		t.Fatalf("not JSON: %q", out.String())
	}
	if rec["msg"] != "job created" || rec["job"] != "abc123" {
		t.Errorf("unexpected record %v", rec)
	}
}
