package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/indexforge/backend/internal/ingest"
	"github.com/indexforge/backend/pkg/logger"
)

// QuoteRefreshJob pulls fresh quotes for the active catalog before the
// rebalance sweep runs.
type QuoteRefreshJob struct {
	refresher *ingest.Refresher
	schedule  string
	logger    *logger.Logger
}

// NewQuoteRefreshJob creates the quote refresh job.
func NewQuoteRefreshJob(refresher *ingest.Refresher, schedule string, log *logger.Logger) *QuoteRefreshJob {
	return &QuoteRefreshJob{refresher: refresher, schedule: schedule, logger: log}
}

// Name returns the job name.
func (j *QuoteRefreshJob) Name() string {
	return "quote_refresh"
}

// Schedule returns the cron expression.
func (j *QuoteRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes quotes for today. Weekend invocations are no-ops.
func (j *QuoteRefreshJob) Run(ctx context.Context) error {
	today := time.Now().Truncate(24 * time.Hour)
	if wd := today.Weekday(); wd == time.Saturday || wd == time.Sunday {
		j.logger.Debug("Quote refresh skipped on weekend")
		return nil
	}

	report, err := j.refresher.Refresh(ctx, today)
	if err != nil {
		return fmt.Errorf("refresh quotes: %w", err)
	}
	if report.Fetched == 0 && report.Failed > 0 {
		return fmt.Errorf("all %d quote fetches failed", report.Failed)
	}
	return nil
}
