package costing_test

import (
	"testing"

	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func processNode(id string, order int, parallel bool, cost, minutes string) *models.FlowNode {
	return &models.FlowNode{
		ID:            id,
		ProcessID:     "proc-" + id,
		SequenceOrder: order,
		Process: &models.Process{
			ID:              "proc-" + id,
			Name:            id,
			BaseCost:        dec(cost),
			BaseTimeMinutes: dec(minutes),
			IsParallel:      parallel,
		},
	}
}

func TestAggregateFlow_ParallelCollapse(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []*models.FlowNode
		expected string
	}{
		{
			name: "parallel run followed by sequential node",
			nodes: []*models.FlowNode{
				processNode("A", 1, true, "1", "10"),
				processNode("B", 2, true, "1", "15"),
				processNode("C", 3, false, "1", "5"),
			},
			expected: "20",
		},
		{
			name: "flow ending on a parallel run",
			nodes: []*models.FlowNode{
				processNode("A", 1, false, "1", "5"),
				processNode("B", 2, true, "1", "8"),
				processNode("C", 3, true, "1", "12"),
			},
			expected: "17",
		},
		{
			name: "two separate parallel runs",
			nodes: []*models.FlowNode{
				processNode("A", 1, true, "1", "3"),
				processNode("B", 2, false, "1", "2"),
				processNode("C", 3, true, "1", "4"),
				processNode("D", 4, true, "1", "6"),
				processNode("E", 5, false, "1", "1"),
			},
			expected: "12",
		},
		{
			name: "sequence order wins over slice order",
			nodes: []*models.FlowNode{
				processNode("C", 3, false, "1", "5"),
				processNode("B", 2, true, "1", "15"),
				processNode("A", 1, true, "1", "10"),
			},
			expected: "20",
		},
		{
			name:     "empty flow",
			nodes:    nil,
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := costing.AggregateFlow(tt.nodes, 1)
			assert.True(t, dec(tt.expected).Equal(agg.TotalTimeMinutes), "got %s", agg.TotalTimeMinutes)
		})
	}
}

func TestAggregateFlow_Merma(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		node := processNode("cut", 1, parallel, "100", "20")
		node.Process.WastePercentage = dec("10")

		agg := costing.AggregateFlow([]*models.FlowNode{node}, 1)

		assert.True(t, dec("110").Equal(agg.CostPerUnit), "got %s", agg.CostPerUnit)
		assert.True(t, dec("22").Equal(agg.TotalTimeMinutes), "got %s", agg.TotalTimeMinutes)
	}
}

func TestAggregateFlow_CustomOverrides(t *testing.T) {
	node := processNode("sew", 1, false, "100", "20")
	node.CustomCost = decimal.NewNullDecimal(dec("50"))
	node.CustomTimeMinutes = decimal.NewNullDecimal(dec("8"))
	node.Process.WastePercentage = dec("50")

	agg := costing.AggregateFlow([]*models.FlowNode{node}, 1)

	assert.True(t, dec("75").Equal(agg.CostPerUnit))
	assert.True(t, dec("12").Equal(agg.TotalTimeMinutes))
}

func TestAggregateFlow_ScalesCostNotTime(t *testing.T) {
	nodes := []*models.FlowNode{
		processNode("A", 1, true, "3", "10"),
		processNode("B", 2, true, "2", "15"),
		processNode("C", 3, false, "5", "5"),
	}
	nodes[1].Process.IsOptional = true

	agg := costing.AggregateFlow(nodes, 12)

	assert.True(t, dec("10").Equal(agg.CostPerUnit))
	assert.True(t, dec("120").Equal(agg.TotalCost))
	assert.True(t, dec("20").Equal(agg.TotalTimeMinutes))
	assert.Equal(t, costing.FlowBreakdown{Nodes: 3, Parallel: 2, Sequential: 1, Optional: 1}, agg.Breakdown)
	assert.Len(t, agg.Nodes, 3)
	assert.Equal(t, "A", agg.Nodes[0].ProcessName)
}
