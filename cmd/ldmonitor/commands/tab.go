package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tabCmd = &cobra.Command{
	Use:   "tab [level|credit]",
	Short: "Print or set the tab shown by status.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), a.monitor.ActiveTab(ctx))
				return nil
			}
			tab, err := a.monitor.SetActiveTab(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tab)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tabCmd)
}
