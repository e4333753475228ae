package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pydverify/backend/internal/scheduler"
)

func newScheduleCmd(load func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Update now, then keep the knowledge base fresh on a schedule",
		Long: `Run an immediate knowledge base update, then a daily update and a weekly
comprehensive update until interrupted. Schedules come from schedule.daily and
schedule.weekly (six-field cron specs, seconds first).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := scheduler.New(a.updater, scheduler.Config{
				Daily:  a.cfg.Schedule.Daily,
				Weekly: a.cfg.Schedule.Weekly,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}

			if err := s.Run(cmd.Context()); err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}
			return nil
		},
	}
}
