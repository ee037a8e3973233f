package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/db"
)

func newSlotsCmd() *cobra.Command {
	var (
		day     string
		offline bool
	)
	c := &cobra.Command{
		Use:   "slots",
		Short: "Print bookable drop-off dates, or the drop-off times on one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()

			var d *db.DB
			if !offline {
				if d, err = openDB(ctx, cfg, true); err != nil {
					return err
				}
				defer d.Close()
			}
			ws := newWorkshop(cfg, d, nil)
			today := ws.Today()
			hours := ws.Hours(ctx)

			blackout := availability.BlackoutSet{}
			if !offline {
				if blackout, err = ws.Blackout(ctx, hours.LookaheadDays); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if day == "" {
				for _, dt := range availability.SelectableDates(today, hours.LookaheadDays, hours.Policy, blackout) {
					fmt.Fprintln(out, dt.Format("2006-01-02 Mon"))
				}
				return nil
			}

			date, err := time.ParseInLocation(availability.DateLayout, day, cfg.Location)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			slots, err := availability.ComputeSlots(hours.Schedule.For(date), date)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "date=%s selectable=%t slots=%s\n",
				day, availability.IsSelectable(date, today, hours.Policy, blackout), strings.Join(availability.Labels(slots), ","))
			return nil
		},
	}
	c.Flags().StringVar(&day, "date", "", "date YYYY-MM-DD (default: list bookable dates)")
	c.Flags().BoolVar(&offline, "offline", false, "use the configured defaults only, without the database or upstream")
	return c
}
