package commands

import (
	"context"
	"fmt"
	"io"
	"ldmonitor/internal/monitor"
	"ldmonitor/internal/render"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the summary line and the active tab.",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.resolve(ctx); err != nil {
				return err
			}
			res := a.monitor.Refresh(ctx, force)
			printStatus(ctx, cmd.OutOrStdout(), a, res)
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().BoolP("force", "f", false, "Ignore cached snapshots.")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(ctx context.Context, out io.Writer, a *app, res monitor.RefreshResult) {
	credits := &res.Credit
	fmt.Fprintln(out, render.Button(res.Level, credits))

	theme := a.theme()
	switch a.monitor.ActiveTab(ctx) {
	case monitor.TabCredit:
		fmt.Fprintln(out, render.Credit(credits, theme))
	default:
		if res.LevelErr != nil {
			fmt.Fprintln(out, render.LevelFailure(theme))
			return
		}
		fmt.Fprintln(out, render.Level(res.Level, theme))
	}
}
