package commands

import (
	"context"
	"fmt"
	"ldmonitor/internal/render"

	"github.com/spf13/cobra"
)

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Print the trust level progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.resolve(ctx); err != nil {
				return err
			}
			s, err := a.monitor.Level(ctx, force)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), render.LevelFailure(a.theme()))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.Level(&s, a.theme()))
			return nil
		})
	},
}

func init() {
	levelCmd.Flags().BoolP("force", "f", false, "Fetch even if the cached snapshot is less than an hour old.")
	rootCmd.AddCommand(levelCmd)
}
