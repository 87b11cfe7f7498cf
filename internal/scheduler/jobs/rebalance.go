// Package jobs holds the engine's scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/engine"
	"github.com/indexforge/backend/internal/rebalance"
	"github.com/indexforge/backend/pkg/config"
	"github.com/indexforge/backend/pkg/logger"
)

// RebalanceSweepJob walks the active indexes once per trading day,
// rebalances every index whose cadence has elapsed, and values all of
// them for the day.
type RebalanceSweepJob struct {
	definitions contracts.DefinitionRepository
	memberships contracts.MembershipRepository
	rebalancer  *rebalance.Rebalancer
	valuator    *engine.Valuator
	config      *config.Config
	logger      *logger.Logger
}

// NewRebalanceSweepJob creates the daily sweep job.
func NewRebalanceSweepJob(
	definitions contracts.DefinitionRepository,
	memberships contracts.MembershipRepository,
	rebalancer *rebalance.Rebalancer,
	valuator *engine.Valuator,
	cfg *config.Config,
	log *logger.Logger,
) *RebalanceSweepJob {
	return &RebalanceSweepJob{
		definitions: definitions,
		memberships: memberships,
		rebalancer:  rebalancer,
		valuator:    valuator,
		config:      cfg,
		logger:      log,
	}
}

// Name returns the job name.
func (j *RebalanceSweepJob) Name() string {
	return "rebalance_sweep"
}

// Schedule returns the cron expression from configuration, by default
// after the US close on weekdays.
func (j *RebalanceSweepJob) Schedule() string {
	return j.config.Scheduler.RebalanceSpec
}

// Run executes the sweep for today. Weekend invocations are no-ops.
func (j *RebalanceSweepJob) Run(ctx context.Context) error {
	today := time.Now().Truncate(24 * time.Hour)
	if wd := today.Weekday(); wd == time.Saturday || wd == time.Sunday {
		j.logger.Debug("Rebalance sweep skipped on weekend")
		return nil
	}
	return j.sweep(ctx, today)
}

func (j *RebalanceSweepJob) sweep(ctx context.Context, date time.Time) error {
	definitions, err := j.definitions.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list active indexes: %w", err)
	}

	failures := 0
	for _, def := range definitions {
		if err := j.sweepIndex(ctx, def, date); err != nil {
			failures++
			j.logger.WithError(err).WithField("index", def.Name).Error("Index sweep failed")
		}
	}
	if failures > 0 {
		return fmt.Errorf("sweep finished with %d of %d indexes failing", failures, len(definitions))
	}
	return nil
}

func (j *RebalanceSweepJob) sweepIndex(ctx context.Context, def *contracts.IndexDefinition, date time.Time) error {
	due, err := j.rebalanceDue(ctx, def, date)
	if err != nil {
		return err
	}

	if due {
		if _, err := j.rebalancer.Rebalance(ctx, def.ID, date); err != nil {
			// A data gap defers the rebalance to the next sweep; the
			// valuation below decides whether the day is usable at all.
			if !contracts.IsRecoverable(err) {
				return err
			}
			j.logger.WithError(err).WithField("index", def.Name).Warn("Rebalance deferred")
		}
	}

	if _, err := j.valuator.Calculate(ctx, def.ID, date); err != nil {
		if !contracts.IsRecoverable(err) {
			return err
		}
		j.logger.WithError(err).WithField("index", def.Name).Warn("Valuation skipped")
	}
	return nil
}

// rebalanceDue reports whether enough business days have elapsed since
// the index's last rebalance. An index with no membership history is
// always due.
func (j *RebalanceSweepJob) rebalanceDue(ctx context.Context, def *contracts.IndexDefinition, date time.Time) (bool, error) {
	last, err := j.memberships.LastRebalanceDate(ctx, def.ID)
	if err != nil {
		return false, fmt.Errorf("last rebalance date for index %d: %w", def.ID, err)
	}
	if last.IsZero() {
		return true, nil
	}

	interval := contracts.RebalanceInterval(def.RebalanceFrequency)
	return businessDaysBetween(last, date) >= interval, nil
}

// businessDaysBetween counts Mon-Fri days in (from, to].
func businessDaysBetween(from, to time.Time) int {
	days := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}
