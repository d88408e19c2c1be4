package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/zsprackett/trainwatch/internal/applog"
	"github.com/zsprackett/trainwatch/internal/client"
	"github.com/zsprackett/trainwatch/internal/config"
	"github.com/zsprackett/trainwatch/internal/db"
	"github.com/zsprackett/trainwatch/internal/notify"
	"github.com/zsprackett/trainwatch/internal/reaper"
	"github.com/zsprackett/trainwatch/internal/simulator"
	"github.com/zsprackett/trainwatch/internal/ui"
	"github.com/zsprackett/trainwatch/internal/webserver"
)

var version = "dev"

const usage = `usage:
  trainwatch              start a job and watch it
  trainwatch watch <id>   watch an existing job
  trainwatch serve        run the simulated training backend
  trainwatch version      print the version`

func openDB(path string) (*db.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
	}
	store, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func initLogger(cfg config.Config, name string, echo io.Writer) (*slog.Logger, func()) {
	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Name:     name,
		Format:   cfg.LogFormat,
		Echo:     echo,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		return slog.Default(), func() {} // falls back to default (stderr)
	}
	return logger, func() { logCloser.Close() }
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func main() {
	if len(os.Args) >= 2 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Println("trainwatch", version)
		return
	}
	if len(os.Args) >= 2 && (os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println(usage)
		return
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}

	if len(os.Args) >= 2 && os.Args[1] == "serve" {
		logger, closeLog := initLogger(cfg, applog.DefaultName+"-serve", os.Stderr)
		defer closeLog()
		if err := serve(cfg, logger); err != nil {
			closeLog()
			fatal(err)
		}
		return
	}

	jobID := ""
	if len(os.Args) >= 2 {
		if os.Args[1] != "watch" || len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		jobID = os.Args[2]
	}

	logger, closeLog := initLogger(cfg, applog.DefaultName, nil)
	defer closeLog()

	c, err := client.New(cfg.Client.BaseURL, time.Duration(cfg.Client.RequestTimeout))
	if err != nil {
		fatal(err)
	}
	notifier := notify.New(notify.Config{
		Enabled: cfg.Notifications.Enabled,
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, logger)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := ui.RunHeadless(ctx, c, jobID, notifier, os.Stdout, logger); err != nil {
			stop()
			closeLog()
			fatal(err)
		}
		return
	}

	app := ui.NewApp(c, notifier, logger)
	if jobID != "" {
		err = app.RunJob(jobID)
	} else {
		err = app.Run()
	}
	if err != nil {
		closeLog()
		fatal(err)
	}
}

func serve(cfg config.Config, logger *slog.Logger) error {
	store, err := openDB(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	sim := simulator.New(simulator.Config{
		Steps:    cfg.Server.Steps,
		Interval: time.Duration(cfg.Server.StepInterval),
	})
	srv := webserver.New(store, sim, webserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	r := reaper.New(store, time.Duration(cfg.Server.JobRetention), srv.Feed(), logger)
	r.Start()
	defer r.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
