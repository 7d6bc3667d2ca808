package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/dukex/costura/pkg/refresher"
)

// Worker consumes costing events and runs the scheduled flow totals refresh.
type Worker struct {
	id        string
	eventBus  eventbus.EventBus
	refresher *refresher.Refresher
	logger    *slog.Logger
}

func NewWorker(id string, eventBus eventbus.EventBus, r *refresher.Refresher, logger *slog.Logger) *Worker {
	return &Worker{
		id:        id,
		eventBus:  eventBus,
		refresher: r,
		logger:    logger.With("module", "worker", "worker_id", id),
	}
}

// Start subscribes to events and blocks until ctx is cancelled or the process is
// interrupted.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker subscriptions")

	err := w.refresher.Register(w.eventBus)
	if err != nil {
		return fmt.Errorf("failed to register flow handler: %w", err)
	}

	err = w.eventBus.Handle(events.CalculationCreatedEvent, w.handleCalculationCreated)
	if err != nil {
		return fmt.Errorf("failed to register calculation handler: %w", err)
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	err = w.refresher.Start(ctx)
	if err != nil {
		return err
	}
	defer w.refresher.Stop()

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		w.logger.InfoContext(ctx, "Received signal", "signal", sig)
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) handleCalculationCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.CalculationCreated)
	if !ok {
		return fmt.Errorf("%w: %T", refresher.ErrUnexpectedEvent, event)
	}

	w.logger.InfoContext(ctx, "Calculation recorded",
		"calculation_id", created.CalculationID,
		"variant_id", created.VariantID,
		"flow_id", created.FlowID,
		"version", created.Version,
		"total_cost", created.TotalCost.String(),
		"total_time_minutes", created.TotalTimeMinutes.String())

	return nil
}
