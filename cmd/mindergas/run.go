package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/homeassistant"
	"github.com/jgoulah/mindergas/internal/metrics"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/publisher"
	"github.com/jgoulah/mindergas/internal/schedule"
	"github.com/jgoulah/mindergas/internal/server"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Starts the long-running bridge. For every configured installation it schedules the
daily statistics refresh and meter reading post, publishes the sensors to Home Assistant
over MQTT discovery and serves the local HTTP API when enabled.

Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	installs, err := db.ListInstallations()
	if err != nil {
		return fmt.Errorf("listing installations: %w", err)
	}
	if len(installs) == 0 {
		return fmt.Errorf("no installations configured, run 'mindergas setup' first")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("mindergas")
	cache := state.NewCache()
	sched := schedule.New(loc, logger)
	srv := server.New(cache, collector, logger)

	var lookup updater.StateLookup
	if cfg.HomeAssistant.URL != "" {
		ha, err := homeassistant.NewClient(cfg.HomeAssistant)
		if err != nil {
			return fmt.Errorf("creating Home Assistant client: %w", err)
		}
		lookup = ha
	}

	var pub *publisher.Publisher
	if cfg.MQTT.Enabled {
		pub, err = publisher.New(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("creating MQTT publisher: %w", err)
		}
		defer pub.Close()
	}

	var clients []*mindergas.Client
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	for _, inst := range installs {
		client := newAPIClient(cfg, inst.APIKey, collector)
		clients = append(clients, client)

		st := state.New(inst.ID, inst.APIKey)
		if err := cache.Add(st); err != nil {
			return err
		}

		opts := []updater.Option{
			updater.WithReadingLog(db),
			updater.WithMetrics(collector),
			updater.WithLocation(loc),
		}
		if lookup != nil {
			opts = append(opts, updater.WithStateLookup(lookup))
		} else if inst.PostMeterReading {
			logger.Warn("meter reading posting enabled but home_assistant is not configured",
				"installation", inst.ShortID())
		}
		u := updater.New(inst, client, st, logger, opts...)

		if err := u.Schedule(sched); err != nil {
			logger.Error("scheduling installation", "installation", inst.ShortID(), "error", err)
		}
		srv.Register(inst, u)

		// Populate the sensors once at startup when statistics are enabled
		if pub != nil {
			if err := pub.Attach(gctx, inst, st, u, inst.UpdateStats); err != nil {
				logger.Error("attaching MQTT publisher", "installation", inst.ShortID(), "error", err)
			}
		} else if inst.UpdateStats {
			g.Go(func() error {
				u.Refresh(gctx)
				return nil
			})
		}
	}

	sched.Start()
	logger.Info("bridge started",
		"version", version,
		"installations", len(installs),
		"jobs", len(sched.Names()),
		"mqtt", pub != nil,
		"http", cfg.HTTP.Enabled,
	)

	if cfg.HTTP.Enabled {
		g.Go(func() error {
			return serveHTTP(gctx, cfg, srv, logger)
		})
	}

	<-gctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("waiting for running jobs", "error", err)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("bridge stopped")
	return nil
}

// serveHTTP runs the local API until ctx is done
func serveHTTP(ctx context.Context, cfg *config.Config, srv *server.Server, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:         cfg.GetHTTPAddress(),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serving HTTP: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}
