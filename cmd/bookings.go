package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/bookinglog"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Inspect booking requests sent to the workshop system",
	}
	cmd.AddCommand(newBookingsLogCmd())
	return cmd
}

func newBookingsLogCmd() *cobra.Command {
	var (
		limit   int
		payload bool
	)
	c := &cobra.Command{
		Use:   "log",
		Short: "List recent booking requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := openDB(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer d.Close()

			es, err := bookinglog.NewRepo(d).List(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range es {
				fmt.Fprintf(out, "id=%d ref=%s status=%s http=%d at=%s customer=%q email=%q rego=%q\n",
					e.ID, e.Reference, e.Status, e.ResponseStatus, e.CreatedAt.In(cfg.Location).Format(time.RFC3339),
					e.CustomerName, e.CustomerEmail, e.RegistrationNumber)
				if payload {
					fmt.Fprintf(out, "  request=%s\n  response=%s\n", e.RequestPayload, e.ResponseBody)
				}
			}
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	c.Flags().BoolVar(&payload, "payload", false, "also print request and response bodies")
	return c
}
