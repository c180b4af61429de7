package commands

import (
	"context"
	"fmt"
	"ldmonitor/internal/components/chrono"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh on an interval and print the status after every refresh.",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		spec, _ := cmd.Flags().GetString("schedule")
		if spec == "" && interval < time.Minute {
			return fmt.Errorf("interval must be at least a minute, got %s", interval)
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.resolve(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			refresh := func() {
				res := a.monitor.Refresh(ctx, false)
				printStatus(ctx, out, a, res)
			}
			refresh()

			scheduler := chrono.NewScheduler(a.tel)
			defer scheduler.Stop()
			if spec != "" {
				err := scheduler.Add(spec, refresh)
				if err != nil {
					return fmt.Errorf("schedule %q: %w", spec, err)
				}
				slog.Info("watching", "schedule", spec)
			} else {
				scheduler.Every(interval, refresh)
				slog.Info("watching", "interval", interval.String())
			}

			// pick up theme and tab switches made by other invocations
			go a.store.Poll(ctx, 5*time.Second)

			<-ctx.Done()
			return nil
		})
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 10*time.Minute, "Time between refreshes.")
	watchCmd.Flags().String("schedule", "", "Cron spec to refresh on instead of a fixed interval, ex. \"0 8 * * *\".")
	rootCmd.AddCommand(watchCmd)
}
