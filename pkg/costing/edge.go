package costing

import (
	"regexp"
	"strings"

	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	MinNodeWidth  = 50
	MinNodeHeight = 30
)

var lineColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateEdge checks a connection against the edges already in its flow and returns
// every violation found. An existing edge with the same id is ignored, so edits can
// be validated against the stored graph.
func ValidateEdge(edge *models.FlowEdge, existing []*models.FlowEdge) []string {
	violations := make([]string, 0)

	if edge.OriginNodeID == edge.DestinationNodeID {
		violations = append(violations, "a process cannot connect to itself")
	} else if Reachable(existing, edge.DestinationNodeID, edge.OriginNodeID, edge.ID) {
		violations = append(violations, "connection would create a cycle")
	}

	if edge.Type == models.ConnectionConditional && strings.TrimSpace(edge.Condition) == "" {
		violations = append(violations, "conditional connections require an activation condition")
	}

	if edge.LineColor != "" && !lineColorPattern.MatchString(edge.LineColor) {
		violations = append(violations, "line color must be a hex color like #64748B")
	}

	if edge.Priority < 1 {
		violations = append(violations, "priority must be at least 1")
	}

	return violations
}

// Reachable runs a breadth-first search from one node along origin to destination
// edges and reports whether target can be reached. The edge with skipID is ignored.
func Reachable(edges []*models.FlowEdge, from, target, skipID string) bool {
	adjacency := make(map[string][]string)

	for _, e := range edges {
		if skipID != "" && e.ID == skipID {
			continue
		}

		adjacency[e.OriginNodeID] = append(adjacency[e.OriginNodeID], e.DestinationNodeID)
	}

	visited := map[string]bool{from: true}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == target {
			return true
		}

		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return false
}

// ValidateNode checks the editor configuration of a flow node.
func ValidateNode(node *models.FlowNode) []string {
	violations := make([]string, 0)

	if node.IsStart && node.IsEnd {
		violations = append(violations, "a node cannot be both start and end point")
	}

	if node.SequenceOrder < 1 {
		violations = append(violations, "sequence order must be at least 1")
	}

	if node.PositionX < 0 || node.PositionY < 0 {
		violations = append(violations, "position must not be negative")
	}

	if node.Width < MinNodeWidth {
		violations = append(violations, "width must be at least 50")
	}

	if node.Height < MinNodeHeight {
		violations = append(violations, "height must be at least 30")
	}

	if node.CustomCost.Valid && node.CustomCost.Decimal.IsNegative() {
		violations = append(violations, "custom cost must not be negative")
	}

	if node.CustomTimeMinutes.Valid && node.CustomTimeMinutes.Decimal.IsNegative() {
		violations = append(violations, "custom time must not be negative")
	}

	return violations
}

// ValidateProcess checks the numeric invariants of a process.
func ValidateProcess(process *models.Process) []string {
	violations := make([]string, 0)
	hundred := decimal.NewFromInt(100)

	if process.BaseCost.IsNegative() {
		violations = append(violations, "base cost must not be negative")
	}

	if process.BaseTimeMinutes.IsNegative() {
		violations = append(violations, "base time must not be negative")
	}

	if process.WastePercentage.IsNegative() || process.WastePercentage.GreaterThan(hundred) {
		violations = append(violations, "waste percentage must be between 0 and 100")
	}

	return violations
}
