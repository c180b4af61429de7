package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the cached trust level and credit snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.monitor.Clear(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
