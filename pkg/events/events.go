// Package events defines the notifications published when calculations and flows change.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

// Topic carries every costing event.
const Topic = "costura.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CalculationCreatedEvent EventType = "calculation.created"
	FlowChangedEvent        EventType = "flow.changed"
)

// FlowChange names what happened to a flow.
type FlowChange string

const (
	FlowSaved            FlowChange = "saved"
	FlowDuplicated       FlowChange = "duplicated"
	FlowPromoted         FlowChange = "promoted"
	FlowActivated        FlowChange = "activated"
	FlowDeleted          FlowChange = "deleted"
	FlowEdgeAdded        FlowChange = "edge_added"
	FlowPositionsUpdated FlowChange = "positions_updated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	StyleID   string         `json:"style_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, styleID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		StyleID:   styleID,
		Metadata:  make(map[string]any),
	}
}

// CalculationCreated is published after a new calculation version is stored.
type CalculationCreated struct {
	BaseEvent

	CalculationID    string          `json:"calculation_id"`
	VariantID        string          `json:"variant_id"`
	FlowID           string          `json:"flow_id"`
	Version          int             `json:"version"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalTimeMinutes decimal.Decimal `json:"total_time_minutes"`
}

func (c CalculationCreated) GetType() EventType {
	return CalculationCreatedEvent
}

func NewCalculationCreated(styleID, variantID, flowID, calculationID string, version int, totalCost, totalTime decimal.Decimal) *CalculationCreated {
	return &CalculationCreated{
		BaseEvent:        NewBaseEvent(CalculationCreatedEvent, styleID),
		CalculationID:    calculationID,
		VariantID:        variantID,
		FlowID:           flowID,
		Version:          version,
		TotalCost:        totalCost,
		TotalTimeMinutes: totalTime,
	}
}

// FlowChanged is published whenever a flow or its graph is modified.
type FlowChanged struct {
	BaseEvent

	FlowID string     `json:"flow_id"`
	Change FlowChange `json:"change"`
}

func (f FlowChanged) GetType() EventType {
	return FlowChangedEvent
}

func NewFlowChanged(styleID, flowID string, change FlowChange) *FlowChanged {
	return &FlowChanged{
		BaseEvent: NewBaseEvent(FlowChangedEvent, styleID),
		FlowID:    flowID,
		Change:    change,
	}
}

// Validate checks the fields a consumer needs to act on the event.
func (f *FlowChanged) Validate() error {
	if f.FlowID == "" {
		return errors.New("flow_id is required")
	}

	if f.StyleID == "" {
		return errors.New("style_id is required")
	}

	if f.Change == "" {
		return errors.New("change is required")
	}

	return nil
}

// NeedsTotals reports whether the flow still exists and its cached totals may be stale.
func (f *FlowChanged) NeedsTotals() bool {
	switch f.Change {
	case FlowSaved, FlowDuplicated, FlowEdgeAdded, FlowActivated:
		return true
	default:
		return false
	}
}
