package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/indexforge/backend/internal/scheduler"
	"github.com/indexforge/backend/internal/scheduler/jobs"
)

// schedulerCmd runs the cron scheduler in the foreground.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled jobs",
	Long: `Run the quote refresh and rebalance sweep jobs on their cron
schedules until interrupted.

Jobs:
  quote_refresh    - Fetch latest quotes for the active catalog
  rebalance_sweep  - Rebalance due indexes and value all active ones

Example:
  go run ./cmd/indexd scheduler
  go run ./cmd/indexd scheduler --run rebalance_sweep`,
	RunE: runScheduler,
}

var schedulerRunNow string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.Flags().StringVar(&schedulerRunNow, "run", "", "run one job immediately and exit")
}

// buildScheduler registers the standard job set on a fresh scheduler.
func buildScheduler(d *deps) (*scheduler.Scheduler, []scheduler.Job, error) {
	sched := scheduler.New(d.Logger)

	jobSet := []scheduler.Job{
		jobs.NewQuoteRefreshJob(d.Refresher, d.Config.Scheduler.RefreshSpec, d.Logger),
		jobs.NewRebalanceSweepJob(
			d.Definitions, d.Memberships, d.Rebalancer, d.Valuator, d.Config, d.Logger,
		),
	}
	for _, job := range jobSet {
		if err := sched.AddJob(job); err != nil {
			return nil, nil, err
		}
	}
	return sched, jobSet, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	sched, jobSet, err := buildScheduler(d)
	if err != nil {
		return err
	}

	if schedulerRunNow != "" {
		for _, job := range jobSet {
			if job.Name() == schedulerRunNow {
				return job.Run(cmd.Context())
			}
		}
		return fmt.Errorf("unknown job %q", schedulerRunNow)
	}

	sched.Start()
	d.Logger.WithField("jobs", sched.Jobs()).Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	d.Logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	sched.Stop()
	return nil
}
