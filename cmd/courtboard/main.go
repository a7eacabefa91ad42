package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"courtboard/internal/app"
	"courtboard/internal/config"
	"courtboard/internal/layout"
	appLog "courtboard/internal/log"
	"courtboard/internal/schedule"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	date       string
}

func main() {
	flags := parseFlags()
	if err := run(flags, os.Stdout); err != nil {
		appLog.Error("courtboard failed", err)
		os.Exit(1)
	}
}

func run(flags flagConfig, stdout io.Writer) error {
	if err := config.LoadDotEnv(flags.envPath); err != nil {
		return err
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	applied := conf.ApplyEnv(os.Getenv)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	appLog.Configure(os.Stderr, conf.Log.Format, appLog.ParseLevel(conf.Log.Level))
	appLog.Info("courtboard starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"fetch_timeout", conf.FetchTimeout,
		"courts", len(conf.Courts),
		"classify_rules", len(conf.Classify),
		"env_applied", applied,
		"once", flags.once,
	)

	c, err := app.NewContainer(conf)
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return runOnce(ctx, c, flags.date, stdout)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Refresher.Run(gctx) })
	g.Go(func() error { return c.Server.ListenAndServe(gctx) })

	err = g.Wait()
	appLog.Info("courtboard exiting")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runOnce builds one board and prints it as indented JSON.
func runOnce(ctx context.Context, c *app.Container, date string, stdout io.Writer) error {
	now := time.Now().In(c.Location)
	if date == "" {
		date = schedule.Today(now, c.Location)
	}

	day, err := c.Aggregator.DaySchedule(ctx, date)
	if err != nil {
		return err
	}
	board := layout.Compute(day, c.Grid, c.Courts, now)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(board)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/courtboard/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to .env file with secrets (ignored if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Build one board, print it as JSON and exit")
	flag.StringVar(&cfg.date, "date", "", "Date (YYYY-MM-DD) for -once; defaults to today in the venue timezone")

	flag.Parse()

	return cfg
}
