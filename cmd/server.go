package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/booking"
	"github.com/example/workshop-booking/internal/logger"
	"github.com/example/workshop-booking/internal/web"
	"github.com/example/workshop-booking/internal/workshop"
)

// draftMaxAge is how long an unfinished booking survives in the browser.
const draftMaxAge = 30 * 24 * time.Hour

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDB(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			var cache workshop.Cache = workshop.NopCache{}
			if cfg.RedisURL != "" {
				rc, err := workshop.NewRedisCache(cfg.RedisURL, "workshopd:")
				if err != nil {
					return err
				}
				defer rc.Close()
				if err := rc.Ping(ctx); err != nil {
					logger.Warn("redis unavailable, lookups will not be cached", "err", err)
				}
				cache = rc
			}

			ws := newWorkshop(cfg, d, cache)
			if cfg.CacheRefresh > 0 && cfg.RedisURL != "" {
				r := &workshop.Refresher{Service: ws, Interval: cfg.CacheRefresh}
				go func() { _ = r.Run(ctx) }()
			}

			s := &web.Server{
				Workshop: ws,
				Cookies:  booking.NewCookieCodec(cfg.CookieHashKey, cfg.CookieBlockKey, draftMaxAge),
				Rules: booking.Rules{
					StrictPersonalDetails: cfg.StrictPersonalDetails,
					Location:              cfg.Location,
				},
				BaseURL: cfg.BaseURL,
			}
			return web.Start(ctx, cfg.ListenAddr, s.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
