package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/workshop-booking/internal/settings"
)

func newJobTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobtype",
		Short: "Manage local job type descriptions and visibility",
	}
	cmd.AddCommand(newJobTypeAddCmd())
	cmd.AddCommand(newJobTypeListCmd())
	cmd.AddCommand(newJobTypeActiveCmd("activate", "Show a job type to customers", true))
	cmd.AddCommand(newJobTypeActiveCmd("deactivate", "Hide a job type from customers", false))
	cmd.AddCommand(newJobTypeDeleteCmd())
	return cmd
}

func withJobTypes(fn func(ctx context.Context, repo *settings.JobTypeRepo, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
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
		return fn(ctx, settings.NewJobTypeRepo(d), cmd, args)
	}
}

func newJobTypeAddCmd() *cobra.Command {
	var name, description string
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a job type, or replace its description",
		RunE: withJobTypes(func(ctx context.Context, repo *settings.JobTypeRepo, cmd *cobra.Command, args []string) error {
			j, err := repo.Upsert(ctx, name, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved job type id=%d name=%q active=%t\n", j.ID, j.Name, j.IsActive)
			return nil
		}),
	}
	c.Flags().StringVar(&name, "name", "", "job type name exactly as the workshop system offers it")
	c.Flags().StringVar(&description, "description", "", "description shown to customers")
	_ = c.MarkFlagRequired("name")
	return c
}

func newJobTypeListCmd() *cobra.Command {
	var activeOnly bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List local job types",
		RunE: withJobTypes(func(ctx context.Context, repo *settings.JobTypeRepo, cmd *cobra.Command, args []string) error {
			js, err := repo.List(ctx, activeOnly)
			if err != nil {
				return err
			}
			for _, j := range js {
				fmt.Fprintf(cmd.OutOrStdout(), "id=%d name=%q active=%t description=%q\n", j.ID, j.Name, j.IsActive, j.Description)
			}
			return nil
		}),
	}
	c.Flags().BoolVar(&activeOnly, "active", false, "only list active job types")
	return c
}

func newJobTypeActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withJobTypes(func(ctx context.Context, repo *settings.JobTypeRepo, cmd *cobra.Command, args []string) error {
			if err := repo.SetActive(ctx, args[0], active); err != nil {
				return fmt.Errorf("%s %q: %w", use, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job type %q active=%t\n", args[0], active)
			return nil
		}),
	}
}

func newJobTypeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a local job type record",
		Args:  cobra.ExactArgs(1),
		RunE: withJobTypes(func(ctx context.Context, repo *settings.JobTypeRepo, cmd *cobra.Command, args []string) error {
			if err := repo.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("delete %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted job type %q\n", args[0])
			return nil
		}),
	}
}
