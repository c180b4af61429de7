package commands

import (
	"context"
	"fmt"
	"ldmonitor/internal/render"

	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Print the credit balance and recent activity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.resolve(ctx); err != nil {
				return err
			}
			s := a.monitor.Credit(ctx, force)
			fmt.Fprintln(cmd.OutOrStdout(), render.Credit(&s, a.theme()))
			return nil
		})
	},
}

func init() {
	creditCmd.Flags().BoolP("force", "f", false, "Fetch even if the cached snapshot is less than 30 minutes old.")
	rootCmd.AddCommand(creditCmd)
}
