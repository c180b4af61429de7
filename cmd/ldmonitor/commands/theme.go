package commands

import (
	"context"
	"fmt"
	"ldmonitor/internal/monitor"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:   "theme [name|next]",
	Short: "List the themes, switch to one by name or cycle to the next.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			themes := a.monitor.Themes
			themes.Init(ctx)
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				t := table.NewWriter()
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"", "KEY", "NAME"})
				current := themes.Current().Key
				for _, theme := range monitor.Themes {
					marker := ""
					if theme.Key == current {
						marker = "*"
					}
					t.AppendRow(table.Row{marker, theme.Key, theme.Icon + " " + theme.Name})
				}
				fmt.Fprintln(out, t.Render())
				return nil
			}

			if args[0] == "next" {
				theme := themes.Next(ctx)
				fmt.Fprintf(out, "%s %s\n", theme.Icon, theme.Name)
				return nil
			}
			if err := themes.Switch(ctx, args[0]); err != nil {
				return err
			}
			theme := themes.Current()
			fmt.Fprintf(out, "%s %s\n", theme.Icon, theme.Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
