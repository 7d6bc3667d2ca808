package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlowStatus represents the lifecycle state of a process flow.
type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"    // Editable, not used by default
	FlowStatusActive   FlowStatus = "active"   // Validated, can become current
	FlowStatusInactive FlowStatus = "inactive" // Retired
)

// ConnectionType describes how control passes along an edge.
type ConnectionType string

const (
	ConnectionSequential  ConnectionType = "sequential"
	ConnectionConditional ConnectionType = "conditional"
	ConnectionParallel    ConnectionType = "parallel"
)

const (
	DefaultNodeWidth  = 200
	DefaultNodeHeight = 80
	DefaultLineColor  = "#64748B"
)

// Flow is a versioned directed graph of processes describing how a style is produced.
type Flow struct {
	ID               string          `json:"id"`
	StyleID          string          `json:"style_id"           validate:"required"`
	Name             string          `json:"name"               validate:"required,max=200"`
	Version          int             `json:"version"`
	IsCurrent        bool            `json:"is_current"`
	Status           FlowStatus      `json:"status"             validate:"required,oneof=draft active inactive"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalTimeMinutes decimal.Decimal `json:"total_time_minutes"`
	Nodes            []*FlowNode     `json:"nodes"`
	Edges            []*FlowEdge     `json:"edges"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FlowNode places a process inside a flow.
type FlowNode struct {
	ID                string              `json:"id"`
	FlowID            string              `json:"flow_id"`
	ProcessID         string              `json:"process_id"          validate:"required"`
	SequenceOrder     int                 `json:"sequence_order"`
	PositionX         float64             `json:"position_x"`
	PositionY         float64             `json:"position_y"`
	Width             float64             `json:"width"`
	Height            float64             `json:"height"`
	CustomCost        decimal.NullDecimal `json:"custom_cost"`
	CustomTimeMinutes decimal.NullDecimal `json:"custom_time_minutes"`
	IsStart           bool                `json:"is_start"`
	IsEnd             bool                `json:"is_end"`
	Notes             string              `json:"notes,omitempty"`
	Process           *Process            `json:"process,omitempty"`
}

// BaseCost returns the custom cost override or the process base cost.
func (n *FlowNode) BaseCost() decimal.Decimal {
	if n.CustomCost.Valid {
		return n.CustomCost.Decimal
	}

	if n.Process == nil {
		return decimal.Zero
	}

	return n.Process.BaseCost
}

// BaseTime returns the custom time override or the process base time.
func (n *FlowNode) BaseTime() decimal.Decimal {
	if n.CustomTimeMinutes.Valid {
		return n.CustomTimeMinutes.Decimal
	}

	if n.Process == nil {
		return decimal.Zero
	}

	return n.Process.BaseTimeMinutes
}

// EffectiveCost is the base cost inflated by the process merma.
func (n *FlowNode) EffectiveCost() decimal.Decimal {
	if n.Process == nil {
		return n.BaseCost()
	}

	return n.BaseCost().Mul(n.Process.WasteFactor())
}

// EffectiveTime is the base time inflated by the process merma.
func (n *FlowNode) EffectiveTime() decimal.Decimal {
	if n.Process == nil {
		return n.BaseTime()
	}

	return n.BaseTime().Mul(n.Process.WasteFactor())
}

func (n *FlowNode) IsParallel() bool {
	return n.Process != nil && n.Process.IsParallel
}

func (n *FlowNode) IsOptional() bool {
	return n.Process != nil && n.Process.IsOptional
}

// ProcessName returns the name of the node's process, or its id when not loaded.
func (n *FlowNode) ProcessName() string {
	if n.Process == nil {
		return n.ProcessID
	}

	return n.Process.Name
}

// FlowEdge connects two nodes of the same flow.
type FlowEdge struct {
	ID                string         `json:"id"`
	FlowID            string         `json:"flow_id"`
	OriginNodeID      string         `json:"origin_node_id"      validate:"required"`
	DestinationNodeID string         `json:"destination_node_id" validate:"required"`
	Type              ConnectionType `json:"type"`
	Condition         string         `json:"condition,omitempty"`
	Label             string         `json:"label,omitempty"`
	LineColor         string         `json:"line_color,omitempty"`
	Priority          int            `json:"priority"`
}
