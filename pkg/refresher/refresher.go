// Package refresher keeps the cached cost and time totals of process flows up to date,
// on a cron schedule and in reaction to flow change events.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule refreshes every current flow at the top of each hour.
const DefaultSchedule = "0 * * * *"

var ErrUnexpectedEvent = errors.New("unexpected event payload")

// TotalsRefresher recomputes flow totals.
type TotalsRefresher interface {
	RefreshTotals(ctx context.Context, flowID string) (*services.FlowTotals, error)
	RefreshCurrent(ctx context.Context) (int, error)
}

type Refresher struct {
	flows    TotalsRefresher
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
	mu       sync.Mutex
}

// New creates a refresher for the given cron expression (standard five fields or a
// descriptor such as @hourly).
func New(flows TotalsRefresher, schedule string, logger *slog.Logger) (*Refresher, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule '%s': %w", schedule, err)
	}

	return &Refresher{
		flows:    flows,
		schedule: schedule,
		logger:   logger.With("module", "refresher"),
	}, nil
}

// Register subscribes the refresher to flow change events.
func (r *Refresher) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.FlowChangedEvent, r.HandleFlowChanged)
}

// Start runs the scheduled refresh until Stop is called or ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := cronLogger{logger: r.logger}

	r.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		),
	)

	entryID, err := r.cron.AddFunc(r.schedule, func() {
		_, _ = r.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Refresher started", "schedule", r.schedule, "entry_id", entryID)

	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		return
	}

	<-r.cron.Stop().Done()
	r.cron = nil

	r.logger.Info("Refresher stopped")
}

// RunOnce refreshes the current flow of every style.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	refreshed, err := r.flows.RefreshCurrent(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to refresh flow totals", "refreshed", refreshed, "error", err)

		return refreshed, err
	}

	r.logger.InfoContext(ctx, "Flow totals refreshed", "refreshed", refreshed)

	return refreshed, nil
}

// HandleFlowChanged refreshes the totals of a changed flow. Changes that leave the
// graph untouched are ignored, as are flows deleted before the event arrives.
func (r *Refresher) HandleFlowChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.FlowChanged)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedEvent, event)
	}

	err := changed.Validate()
	if err != nil {
		r.logger.WarnContext(ctx, "Dropping invalid flow event", "event_id", changed.ID, "error", err)

		return nil
	}

	if !changed.NeedsTotals() {
		return nil
	}

	totals, err := r.flows.RefreshTotals(ctx, changed.FlowID)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			r.logger.DebugContext(ctx, "Flow no longer exists", "flow_id", changed.FlowID)

			return nil
		}

		return err
	}

	r.logger.DebugContext(ctx, "Flow totals updated",
		"flow_id", changed.FlowID, "change", changed.Change,
		"total_cost", totals.TotalCost.String(), "total_time_minutes", totals.TotalTimeMinutes.String())

	return nil
}
