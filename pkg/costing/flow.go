package costing

import (
	"sort"

	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

// NodeDetail is the contribution of one flow node to an aggregate.
type NodeDetail struct {
	NodeID          string          `json:"node_id"`
	ProcessID       string          `json:"process_id"`
	ProcessName     string          `json:"process_name"`
	SequenceOrder   int             `json:"sequence_order"`
	WastePercentage decimal.Decimal `json:"waste_percentage"`
	Cost            decimal.Decimal `json:"cost"`
	TimeMinutes     decimal.Decimal `json:"time_minutes"`
	IsParallel      bool            `json:"is_parallel"`
	IsOptional      bool            `json:"is_optional"`
}

// FlowBreakdown counts the nodes of an aggregated flow by kind.
type FlowBreakdown struct {
	Nodes      int `json:"nodes"`
	Parallel   int `json:"parallel"`
	Sequential int `json:"sequential"`
	Optional   int `json:"optional"`
}

// FlowAggregate is the cost and time of running a flow.
type FlowAggregate struct {
	CostPerUnit      decimal.Decimal `json:"cost_per_unit"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalTimeMinutes decimal.Decimal `json:"total_time_minutes"`
	Pieces           int             `json:"pieces"`
	Breakdown        FlowBreakdown   `json:"breakdown"`
	Nodes            []NodeDetail    `json:"nodes"`
}

// AggregateFlow walks nodes in sequence order and returns their combined cost and time.
//
// Cost is additive over every node and scaled by pieces. Time is not scaled: runs of
// consecutive parallel nodes only contribute their longest time, which is added when
// the next sequential node starts or when the flow ends.
func AggregateFlow(nodes []*models.FlowNode, pieces int) FlowAggregate {
	ordered := SortNodes(nodes)

	agg := FlowAggregate{
		CostPerUnit:      decimal.Zero,
		TotalTimeMinutes: decimal.Zero,
		Pieces:           pieces,
		Nodes:            make([]NodeDetail, 0, len(ordered)),
	}

	var parallelTimes []decimal.Decimal

	for _, node := range ordered {
		cost := node.EffectiveCost()
		time := node.EffectiveTime()

		agg.CostPerUnit = agg.CostPerUnit.Add(cost)
		agg.Breakdown.Nodes++

		if node.IsOptional() {
			agg.Breakdown.Optional++
		}

		if node.IsParallel() {
			agg.Breakdown.Parallel++
			parallelTimes = append(parallelTimes, time)
		} else {
			agg.Breakdown.Sequential++

			if len(parallelTimes) > 0 {
				agg.TotalTimeMinutes = agg.TotalTimeMinutes.Add(maxOf(parallelTimes))
				parallelTimes = parallelTimes[:0]
			}

			agg.TotalTimeMinutes = agg.TotalTimeMinutes.Add(time)
		}

		detail := NodeDetail{
			NodeID:          node.ID,
			ProcessID:       node.ProcessID,
			ProcessName:     node.ProcessName(),
			SequenceOrder:   node.SequenceOrder,
			WastePercentage: decimal.Zero,
			Cost:            cost,
			TimeMinutes:     time,
			IsParallel:      node.IsParallel(),
			IsOptional:      node.IsOptional(),
		}
		if node.Process != nil {
			detail.WastePercentage = node.Process.WastePercentage
		}

		agg.Nodes = append(agg.Nodes, detail)
	}

	if len(parallelTimes) > 0 {
		agg.TotalTimeMinutes = agg.TotalTimeMinutes.Add(maxOf(parallelTimes))
	}

	agg.TotalCost = agg.CostPerUnit.Mul(decimal.NewFromInt(int64(pieces)))

	return agg
}

// SortNodes returns a copy of nodes ordered by sequence order, keeping input order for ties.
func SortNodes(nodes []*models.FlowNode) []*models.FlowNode {
	ordered := make([]*models.FlowNode, len(nodes))
	copy(ordered, nodes)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceOrder < ordered[j].SequenceOrder
	})

	return ordered
}

func maxOf(values []decimal.Decimal) decimal.Decimal {
	return decimal.Max(values[0], values[1:]...)
}
