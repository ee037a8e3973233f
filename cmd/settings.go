package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the drop-off window and advance notice",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsOverrideCmd())
	return cmd
}

func withSettings(fn func(ctx context.Context, repo *settings.Repo, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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
		return fn(ctx, settings.NewRepo(d, cfg.Defaults), cmd)
	}
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current service settings",
		RunE: withSettings(func(ctx context.Context, repo *settings.Repo, cmd *cobra.Command) error {
			s, err := repo.Get(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drop_off_start_time=%s drop_off_end_time=%s slot_minutes=%d booking_advance_notice=%d updated_at=%s\n",
				s.DropOffStart.Long(), s.DropOffEnd.Long(), s.SlotMinutes, s.AdvanceNoticeDays, s.UpdatedAt.Format(time.RFC3339))

			overrides, err := repo.Overrides(ctx, time.Now())
			if err != nil {
				return err
			}
			for _, o := range overrides {
				fmt.Fprintf(cmd.OutOrStdout(), "override day=%s drop_off_start_time=%s drop_off_end_time=%s\n",
					o.Day.Format(availability.DateLayout), o.Start.Long(), o.End.Long())
			}
			return nil
		}),
	}
}

func newSettingsSetCmd() *cobra.Command {
	var (
		start, end    string
		slotMinutes   int
		advanceNotice int
	)
	c := &cobra.Command{
		Use:   "set",
		Short: "Change service settings; unspecified flags keep their current value",
	}
	c.RunE = withSettings(func(ctx context.Context, repo *settings.Repo, cmd *cobra.Command) error {
		s, err := repo.Get(ctx)
		if err != nil {
			return err
		}
		if c.Flags().Changed("start") {
			if s.DropOffStart, err = availability.ParseClock(start); err != nil {
				return fmt.Errorf("invalid --start (want HH:MM): %w", err)
			}
		}
		if c.Flags().Changed("end") {
			if s.DropOffEnd, err = availability.ParseClock(end); err != nil {
				return fmt.Errorf("invalid --end (want HH:MM): %w", err)
			}
		}
		if c.Flags().Changed("slot-minutes") {
			s.SlotMinutes = slotMinutes
		}
		if c.Flags().Changed("advance-notice") {
			s.AdvanceNoticeDays = advanceNotice
		}
		if err := repo.Update(ctx, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated service settings window=%s..%s slot_minutes=%d booking_advance_notice=%d\n",
			s.DropOffStart, s.DropOffEnd, s.SlotMinutes, s.AdvanceNoticeDays)
		return nil
	})

	c.Flags().StringVar(&start, "start", "", "drop-off start time HH:MM")
	c.Flags().StringVar(&end, "end", "", "drop-off end time HH:MM (exclusive)")
	c.Flags().IntVar(&slotMinutes, "slot-minutes", 30, "minutes between drop-off slots")
	c.Flags().IntVar(&advanceNotice, "advance-notice", 2, "minimum days between today and the first bookable date")
	return c
}

func newSettingsOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Change the drop-off window on a single date",
	}

	var day, start, end string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set a different drop-off window for one date",
	}
	setCmd.RunE = withSettings(func(ctx context.Context, repo *settings.Repo, cmd *cobra.Command) error {
		d, err := time.Parse(availability.DateLayout, day)
		if err != nil {
			return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
		}
		o := settings.Override{Day: d}
		if o.Start, err = availability.ParseClock(start); err != nil {
			return fmt.Errorf("invalid --start (want HH:MM): %w", err)
		}
		if o.End, err = availability.ParseClock(end); err != nil {
			return fmt.Errorf("invalid --end (want HH:MM): %w", err)
		}
		if err := repo.SetOverride(ctx, o); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "override day=%s window=%s..%s\n", day, o.Start, o.End)
		return nil
	})
	setCmd.Flags().StringVar(&day, "date", "", "date YYYY-MM-DD")
	setCmd.Flags().StringVar(&start, "start", "", "drop-off start time HH:MM")
	setCmd.Flags().StringVar(&end, "end", "", "drop-off end time HH:MM (exclusive)")
	_ = setCmd.MarkFlagRequired("date")
	_ = setCmd.MarkFlagRequired("start")
	_ = setCmd.MarkFlagRequired("end")

	var clearDay string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the override for one date",
	}
	clearCmd.RunE = withSettings(func(ctx context.Context, repo *settings.Repo, cmd *cobra.Command) error {
		d, err := time.Parse(availability.DateLayout, clearDay)
		if err != nil {
			return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
		}
		if err := repo.DeleteOverride(ctx, d); err != nil {
			return fmt.Errorf("clear override %s: %w", clearDay, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared override day=%s\n", clearDay)
		return nil
	})
	clearCmd.Flags().StringVar(&clearDay, "date", "", "date YYYY-MM-DD")
	_ = clearCmd.MarkFlagRequired("date")

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}
