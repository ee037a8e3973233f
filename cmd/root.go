package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/backend"
	"github.com/example/workshop-booking/internal/bookinglog"
	"github.com/example/workshop-booking/internal/config"
	"github.com/example/workshop-booking/internal/db"
	"github.com/example/workshop-booking/internal/logger"
	"github.com/example/workshop-booking/internal/migrate"
	"github.com/example/workshop-booking/internal/settings"
	"github.com/example/workshop-booking/internal/workshop"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "workshopd",
		Short:         "Workshop service booking site and operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newSettingsCmd())
	root.AddCommand(newJobTypeCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newBookingsCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	logger.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// openDB connects and, when migrateUp is set, brings the schema up to date.
func openDB(ctx context.Context, cfg config.Config, migrateUp bool) (*db.DB, error) {
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// newWorkshop wires the booking service. d and cache may be nil.
func newWorkshop(cfg config.Config, d *db.DB, cache workshop.Cache) *workshop.Service {
	s := &workshop.Service{
		Upstream: backend.New(cfg.UpstreamURL, cfg.UpstreamToken, cfg.UpstreamTimeout),
		Cache:    cache,
		Defaults: cfg.Defaults,
		Location: cfg.Location,
		CacheTTL: cfg.CacheTTL,
		Timeout:  cfg.UpstreamTimeout,
	}
	if d != nil {
		s.Settings = settings.NewRepo(d, cfg.Defaults)
		s.JobTypeStore = settings.NewJobTypeRepo(d)
		s.Log = bookinglog.NewRepo(d)
	}
	return s
}
