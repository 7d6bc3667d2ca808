// Package testutil provides test data builders for processes and flows.
package testutil

import (
	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

// NewProcess creates a test Process costing 10 over 30 minutes that can be overridden.
func NewProcess(id string, overrides ...func(*models.Process)) *models.Process {
	process := &models.Process{
		ID:              id,
		Code:            "PRC",
		Name:            "Test process " + id,
		BaseCost:        decimal.NewFromInt(10),
		BaseTimeMinutes: decimal.NewFromInt(30),
	}

	for _, override := range overrides {
		override(process)
	}

	return process
}

// WithCost sets the base cost and time of the process.
func WithCost(cost, minutes int64) func(*models.Process) {
	return func(p *models.Process) {
		p.BaseCost = decimal.NewFromInt(cost)
		p.BaseTimeMinutes = decimal.NewFromInt(minutes)
	}
}

// WithWaste sets the waste percentage of the process.
func WithWaste(percentage int64) func(*models.Process) {
	return func(p *models.Process) {
		p.WastePercentage = decimal.NewFromInt(percentage)
	}
}

// Parallel marks the process as running alongside the previous one.
func Parallel() func(*models.Process) {
	return func(p *models.Process) {
		p.IsParallel = true
	}
}

// NewFlowNode creates a node executing process with the editor's default size.
func NewFlowNode(id string, process *models.Process, overrides ...func(*models.FlowNode)) *models.FlowNode {
	node := &models.FlowNode{
		ID:        id,
		ProcessID: process.ID,
		Width:     models.DefaultNodeWidth,
		Height:    models.DefaultNodeHeight,
		Process:   process,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// AsStart marks the node as a start point.
func AsStart() func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.IsStart = true
	}
}

// AsEnd marks the node as an end point.
func AsEnd() func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.IsEnd = true
	}
}

// NewFlow creates a draft flow chaining nodes with sequential edges in the given order.
// Sequence orders follow the slice order.
func NewFlow(id, styleID string, nodes []*models.FlowNode, overrides ...func(*models.Flow)) *models.Flow {
	flow := &models.Flow{
		ID:      id,
		StyleID: styleID,
		Name:    "Test flow " + id,
		Status:  models.FlowStatusDraft,
		Nodes:   nodes,
		Edges:   make([]*models.FlowEdge, 0, len(nodes)),
	}

	for i, node := range nodes {
		node.FlowID = id
		node.SequenceOrder = i + 1

		if i == 0 {
			continue
		}

		flow.Edges = append(flow.Edges, &models.FlowEdge{
			ID:                id + "-edge-" + nodes[i-1].ID,
			FlowID:            id,
			OriginNodeID:      nodes[i-1].ID,
			DestinationNodeID: node.ID,
			Type:              models.ConnectionSequential,
			LineColor:         models.DefaultLineColor,
			Priority:          1,
		})
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// Current makes the flow the active, current flow of its style.
func Current() func(*models.Flow) {
	return func(f *models.Flow) {
		f.IsCurrent = true
		f.Status = models.FlowStatusActive
	}
}

// Named sets the flow name.
func Named(name string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Name = name
	}
}
