package costing

import (
	"fmt"

	"github.com/dukex/costura/pkg/models"
)

// ConsistencyStats describes the shape of a validated flow.
type ConsistencyStats struct {
	Nodes       int `json:"nodes"`
	Connections int `json:"connections"`
	StartPoints int `json:"start_points"`
	EndPoints   int `json:"end_points"`
	Parallel    int `json:"parallel"`
	Optional    int `json:"optional"`
}

// ConsistencyReport lists every structural or semantic problem found in a flow.
type ConsistencyReport struct {
	IsValid bool             `json:"is_valid"`
	Errors  []string         `json:"errors"`
	Stats   ConsistencyStats `json:"stats"`
}

// ValidateFlowConsistency checks that a flow can be used for costing.
//
// All violations are collected. Nodes that are not end points need an outgoing
// connection; incoming connections are not required, so disconnected optional
// branches are tolerated. Nodes whose process requires color need a dye material
// in the style's active BOM.
func ValidateFlowConsistency(flow *models.Flow, bomLines []*models.BomLine) ConsistencyReport {
	report := ConsistencyReport{
		Errors: make([]string, 0),
		Stats: ConsistencyStats{
			Nodes:       len(flow.Nodes),
			Connections: len(flow.Edges),
		},
	}

	outgoing := make(map[string]int, len(flow.Nodes))
	for _, edge := range flow.Edges {
		outgoing[edge.OriginNodeID]++
	}

	hasDye := HasDyeMaterial(bomLines)

	for _, node := range SortNodes(flow.Nodes) {
		if node.IsStart {
			report.Stats.StartPoints++
		}

		if node.IsEnd {
			report.Stats.EndPoints++
		}

		if node.IsParallel() {
			report.Stats.Parallel++
		}

		if node.IsOptional() {
			report.Stats.Optional++
		}
	}

	if report.Stats.Nodes == 0 {
		report.Errors = append(report.Errors, "flow has no process nodes")
	}

	if report.Stats.StartPoints == 0 {
		report.Errors = append(report.Errors, "flow has no start point")
	}

	if report.Stats.EndPoints == 0 {
		report.Errors = append(report.Errors, "flow has no end point")
	}

	for _, node := range SortNodes(flow.Nodes) {
		if !node.IsEnd && outgoing[node.ID] == 0 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("process '%s' has no outgoing connections", node.ProcessName()))
		}

		if node.Process != nil && node.Process.RequiresColor && !hasDye {
			report.Errors = append(report.Errors,
				fmt.Sprintf("process '%s' requires color but the style BOM has no dye material", node.ProcessName()))
		}
	}

	report.IsValid = len(report.Errors) == 0

	return report
}
