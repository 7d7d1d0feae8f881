// tablesocket keeps a socket open to a tabletop campaign server, prints dice
// roll results and campaign updates, and sends lines typed on stdin.
//
// Usage: go run ./cmd/tablesocket -config configs/tablesocket.example.yaml
//
// Each stdin line is "<type> <json-payload>", for example:
//
//	dice_roll {"dice":"2d6","modifier":3}
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tablesocket/internal/config"
	"github.com/rickgao/tablesocket/internal/connection"
	"github.com/rickgao/tablesocket/internal/database"
	"github.com/rickgao/tablesocket/internal/events"
	"github.com/rickgao/tablesocket/internal/journal"
	"github.com/rickgao/tablesocket/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/tablesocket.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "debug logging and full payloads")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.Logging, *verbose)
	slog.SetDefault(logger)

	logger.Info("starting tablesocket",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"origin", cfg.Server.Origin,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, *verbose, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer, verbose bool, logger *slog.Logger) error {
	bus := events.NewBus(logger)

	printer := func(n events.Notification) {
		fmt.Fprintln(out, formatNotification(n, verbose))
	}
	bus.On(events.DiceRollResult, printer)
	bus.On(events.CampaignUpdate, printer)

	var j *journal.Journal
	if cfg.Journal.Enabled {
		pool, err := database.Connect(ctx, cfg.Journal.Database, cfg.Instance.ID, logger)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		j = journal.New(journal.ConfigFrom(cfg.Journal), pool, logger)
		if err := j.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
		j.Subscribe(bus, events.DiceRollResult, events.CampaignUpdate)
		if err := j.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}

	mgr, err := connection.NewManager(connection.ManagerConfigFrom(cfg), bus, logger)
	if err != nil {
		return fmt.Errorf("create connection manager: %w", err)
	}
	mgr.Connect(false)

	g, gctx := errgroup.WithContext(ctx)

	// Outside the group: a read from stdin cannot be interrupted, so the
	// scanner may stay parked in Scan until the process exits.
	lines := make(chan string)
	go scanLines(gctx, in, lines)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					// stdin closed; keep listening until a signal arrives
					lines = nil
					continue
				}
				sendLine(mgr, line, logger)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutting down")
	mgr.Close()

	stats := mgr.Stats()
	logger.Info("connection stats",
		"received", stats.MessagesReceived,
		"dispatched", stats.MessagesDispatched,
		"ignored", stats.MessagesIgnored,
		"parse_errors", stats.ParseErrors,
		"sent", stats.MessagesSent,
		"dropped", stats.SendsDropped,
		"reconnects", stats.ReconnectsScheduled,
	)

	if j != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := j.Stop(stopCtx); err != nil {
			logger.Warn("journal stop failed", "error", err)
		}
		js := j.Stats()
		logger.Info("journal stats", "inserts", js.Inserts, "dropped", js.Dropped, "errors", js.Errors)
	}

	return nil
}

// scanLines forwards stdin lines until in is exhausted or ctx is done.
func scanLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func sendLine(mgr *connection.Manager, line string, logger *slog.Logger) {
	kind, payload, ok, err := parseLine(line)
	if err != nil {
		logger.Warn("invalid input", "error", err)
		return
	}
	if !ok {
		return
	}
	// Send logs its own failures
	_ = mgr.Send(kind, payload)
}
