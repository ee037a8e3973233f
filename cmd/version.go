package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool
	c := &cobra.Command{
		Use:   "version",
		Short: "Print the workshopd build",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), Version)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workshopd %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
	c.Flags().BoolVar(&short, "short", false, "print only the version number")
	return c
}
