package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

const editorPayloadSchema = `{
  "type": "object",
  "required": ["name", "nodes", "edges"],
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "position", "data"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "position": {
            "type": "object",
            "required": ["x", "y"],
            "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
          },
          "data": {
            "type": "object",
            "required": ["process_id"],
            "properties": {
              "process_id": {"type": "string", "minLength": 1},
              "is_start": {"type": "boolean"},
              "is_end": {"type": "boolean"},
              "custom_cost": {"type": ["number", "null"], "minimum": 0},
              "custom_time_minutes": {"type": ["number", "null"], "minimum": 0},
              "notes": {"type": ["string", "null"]},
              "width": {"type": "number"},
              "height": {"type": "number"}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string"},
          "source": {"type": "string"},
          "target": {"type": "string"},
          "data": {
            "type": ["object", "null"],
            "properties": {
              "type": {"enum": ["sequential", "conditional", "parallel", null]},
              "label": {"type": ["string", "null"], "maxLength": 100},
              "condition": {"type": ["string", "null"], "maxLength": 500}
            }
          }
        }
      }
    }
  }
}`

var editorSchema = gojsonschema.NewStringLoader(editorPayloadSchema)

// EditorPayload is the graph sent by the visual flow editor.
type EditorPayload struct {
	Name  string       `json:"name"`
	Nodes []EditorNode `json:"nodes"`
	Edges []EditorEdge `json:"edges"`
}

type EditorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type EditorNodeData struct {
	ProcessID         string              `json:"process_id"`
	IsStart           bool                `json:"is_start"`
	IsEnd             bool                `json:"is_end"`
	CustomCost        decimal.NullDecimal `json:"custom_cost"`
	CustomTimeMinutes decimal.NullDecimal `json:"custom_time_minutes"`
	Notes             string              `json:"notes"`
	Width             float64             `json:"width"`
	Height            float64             `json:"height"`
}

// EditorNode ids are editor-local; stored nodes get new ids.
type EditorNode struct {
	ID       string         `json:"id"`
	Position EditorPosition `json:"position"`
	Data     EditorNodeData `json:"data"`
}

type EditorEdgeData struct {
	Type      models.ConnectionType `json:"type"`
	Label     string                `json:"label"`
	Condition string                `json:"condition"`
}

type EditorEdge struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Target string          `json:"target"`
	Data   *EditorEdgeData `json:"data"`
}

// FlowSaveResult is a stored flow together with its consistency report.
type FlowSaveResult struct {
	Flow       *models.Flow              `json:"flow"`
	Validation costing.ConsistencyReport `json:"validation"`
}

// AddEdgeRequest connects two nodes of a stored flow.
type AddEdgeRequest struct {
	OriginNodeID      string                `json:"origin_node_id"      validate:"required"`
	DestinationNodeID string                `json:"destination_node_id" validate:"required"`
	Type              models.ConnectionType `json:"type"                validate:"omitempty,oneof=sequential conditional parallel"`
	Condition         string                `json:"condition"           validate:"max=500"`
	Label             string                `json:"label"               validate:"max=100"`
	LineColor         string                `json:"line_color"`
	Priority          int                   `json:"priority"`
}

// FlowTotals is the cached per-unit cost and time of a flow.
type FlowTotals struct {
	FlowID           string                `json:"flow_id"`
	TotalCost        decimal.Decimal       `json:"total_cost"`
	TotalTimeMinutes decimal.Decimal       `json:"total_time_minutes"`
	Breakdown        costing.FlowBreakdown `json:"breakdown"`
}

// Flow manages the lifecycle of process flows.
type Flow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewFlow creates a new flow service. A nil publisher disables events.
func NewFlow(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Flow {
	return &Flow{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns the flows of a style, newest version first.
func (f *Flow) List(ctx context.Context, styleID string) ([]*models.Flow, error) {
	_, err := f.persistence.CatalogRepository().GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	flows, err := f.persistence.FlowRepository().ListByStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

func (f *Flow) Get(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	return flow, nil
}

// SaveFromEditor stores an editor graph as a new draft version of the style's flow.
// Edges pointing to nodes missing from the payload are skipped. The consistency
// report is returned with the flow and does not prevent saving.
func (f *Flow) SaveFromEditor(ctx context.Context, styleID string, raw []byte) (*FlowSaveResult, error) {
	payload, err := decodeEditorPayload(raw)
	if err != nil {
		return nil, err
	}

	_, err = f.persistence.CatalogRepository().GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	flow, violations, err := f.buildFlow(ctx, styleID, payload)
	if err != nil {
		return nil, err
	}

	if len(violations) > 0 {
		return nil, NewViolationError("SaveFromEditor", ErrInvalidPayload, violations)
	}

	aggregate := costing.AggregateFlow(flow.Nodes, 1)
	flow.TotalCost = aggregate.TotalCost
	flow.TotalTimeMinutes = aggregate.TotalTimeMinutes

	err = f.persistence.FlowRepository().Create(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	f.logger.InfoContext(ctx, "Flow saved from editor",
		"flow_id", flow.ID, "style_id", styleID, "version", flow.Version, "nodes", len(flow.Nodes))

	return f.savedResult(ctx, flow.ID, events.FlowSaved)
}

func decodeEditorPayload(raw []byte) (*EditorPayload, error) {
	result, err := gojsonschema.Validate(editorSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, NewViolationError("SaveFromEditor", ErrInvalidPayload, []string{err.Error()})
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return nil, NewViolationError("SaveFromEditor", ErrInvalidPayload, violations)
	}

	var payload EditorPayload

	err = json.Unmarshal(raw, &payload)
	if err != nil {
		return nil, NewViolationError("SaveFromEditor", ErrInvalidPayload, []string{err.Error()})
	}

	return &payload, nil
}

// buildFlow maps the editor graph onto a new flow with fresh ids.
func (f *Flow) buildFlow(ctx context.Context, styleID string, payload *EditorPayload) (*models.Flow, []string, error) {
	flow := &models.Flow{
		ID:      uuid.NewString(),
		StyleID: styleID,
		Name:    payload.Name,
		Status:  models.FlowStatusDraft,
		Nodes:   make([]*models.FlowNode, 0, len(payload.Nodes)),
		Edges:   make([]*models.FlowEdge, 0, len(payload.Edges)),
	}

	violations := make([]string, 0)
	nodeIDs := make(map[string]string, len(payload.Nodes))
	processes := make(map[string]*models.Process)

	for i, in := range payload.Nodes {
		process, ok := processes[in.Data.ProcessID]
		if !ok {
			p, err := f.persistence.CatalogRepository().GetProcess(ctx, in.Data.ProcessID)
			if err != nil && !persistence.IsNotFound(err) {
				return nil, nil, fmt.Errorf("failed to load process: %w", err)
			}

			process = p
			processes[in.Data.ProcessID] = p
		}

		if process == nil {
			violations = append(violations, fmt.Sprintf("node %s: process %s does not exist", in.ID, in.Data.ProcessID))

			continue
		}

		node := &models.FlowNode{
			ID:                uuid.NewString(),
			FlowID:            flow.ID,
			ProcessID:         process.ID,
			SequenceOrder:     i + 1,
			PositionX:         in.Position.X,
			PositionY:         in.Position.Y,
			Width:             orDefault(in.Data.Width, models.DefaultNodeWidth),
			Height:            orDefault(in.Data.Height, models.DefaultNodeHeight),
			CustomCost:        in.Data.CustomCost,
			CustomTimeMinutes: in.Data.CustomTimeMinutes,
			IsStart:           in.Data.IsStart,
			IsEnd:             in.Data.IsEnd,
			Notes:             in.Data.Notes,
			Process:           process,
		}

		for _, v := range costing.ValidateNode(node) {
			violations = append(violations, fmt.Sprintf("node %s: %s", in.ID, v))
		}

		nodeIDs[in.ID] = node.ID
		flow.Nodes = append(flow.Nodes, node)
	}

	for _, in := range payload.Edges {
		origin, okOrigin := nodeIDs[in.Source]
		destination, okDestination := nodeIDs[in.Target]

		if !okOrigin || !okDestination {
			continue
		}

		edge := &models.FlowEdge{
			ID:                uuid.NewString(),
			FlowID:            flow.ID,
			OriginNodeID:      origin,
			DestinationNodeID: destination,
			Type:              models.ConnectionSequential,
			LineColor:         models.DefaultLineColor,
			Priority:          1,
		}

		if in.Data != nil {
			if in.Data.Type != "" {
				edge.Type = in.Data.Type
			}

			edge.Label = in.Data.Label
			edge.Condition = in.Data.Condition
		}

		for _, v := range costing.ValidateEdge(edge, flow.Edges) {
			violations = append(violations, fmt.Sprintf("edge %s: %s", in.ID, v))
		}

		flow.Edges = append(flow.Edges, edge)
	}

	return flow, violations, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}

	return v
}

// savedResult reloads a stored flow, validates it and announces the change.
func (f *Flow) savedResult(ctx context.Context, flowID string, change events.FlowChange) (*FlowSaveResult, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload flow: %w", err)
	}

	report, err := f.validate(ctx, flow)
	if err != nil {
		return nil, err
	}

	f.publish(ctx, flow.StyleID, flow.ID, change)

	return &FlowSaveResult{Flow: flow, Validation: report}, nil
}

// UpdatePositions moves nodes in the editor canvas.
func (f *Flow) UpdatePositions(ctx context.Context, flowID string, positions []persistence.NodePosition) error {
	if len(positions) == 0 {
		return NewViolationError("UpdatePositions", ErrInvalidRequest, []string{"at least one position is required"})
	}

	var violations []string

	for _, p := range positions {
		if p.PositionX < 0 || p.PositionY < 0 {
			violations = append(violations, fmt.Sprintf("node %s: position must not be negative", p.NodeID))
		}
	}

	if len(violations) > 0 {
		return NewViolationError("UpdatePositions", ErrInvalidRequest, violations)
	}

	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return fmt.Errorf("failed to load flow: %w", err)
	}

	err = f.persistence.FlowRepository().UpdatePositions(ctx, flowID, positions)
	if err != nil {
		return fmt.Errorf("failed to update positions: %w", err)
	}

	f.publish(ctx, flow.StyleID, flowID, events.FlowPositionsUpdated)

	return nil
}

// AddEdge validates a new connection against the flow's graph and stores it.
func (f *Flow) AddEdge(ctx context.Context, flowID string, req AddEdgeRequest) (*models.FlowEdge, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	edge := &models.FlowEdge{
		ID:                uuid.NewString(),
		FlowID:            flowID,
		OriginNodeID:      req.OriginNodeID,
		DestinationNodeID: req.DestinationNodeID,
		Type:              req.Type,
		Condition:         req.Condition,
		Label:             req.Label,
		LineColor:         req.LineColor,
		Priority:          req.Priority,
	}

	if edge.Type == "" {
		edge.Type = models.ConnectionSequential
	}

	if edge.LineColor == "" {
		edge.LineColor = models.DefaultLineColor
	}

	if edge.Priority == 0 {
		edge.Priority = 1
	}

	violations := make([]string, 0)

	nodes := make(map[string]bool, len(flow.Nodes))
	for _, n := range flow.Nodes {
		nodes[n.ID] = true
	}

	for _, id := range []string{edge.OriginNodeID, edge.DestinationNodeID} {
		if !nodes[id] {
			violations = append(violations, fmt.Sprintf("node %s does not belong to the flow", id))
		}
	}

	violations = append(violations, costing.ValidateEdge(edge, flow.Edges)...)
	if len(violations) > 0 {
		return nil, NewViolationError("AddEdge", ErrInvalidEdge, violations)
	}

	err = f.persistence.FlowRepository().SaveEdge(ctx, edge)
	if err != nil {
		return nil, fmt.Errorf("failed to save edge: %w", err)
	}

	f.publish(ctx, flow.StyleID, flowID, events.FlowEdgeAdded)

	return edge, nil
}

// Duplicate copies a flow into a new draft version of the same style.
func (f *Flow) Duplicate(ctx context.Context, flowID string) (*FlowSaveResult, error) {
	repo := f.persistence.FlowRepository()

	source, err := repo.GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	siblings, err := repo.ListByStyle(ctx, source.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	next := 1
	for _, s := range siblings {
		next = max(next, s.Version+1)
	}

	duplicate := &models.Flow{
		ID:               uuid.NewString(),
		StyleID:          source.StyleID,
		Name:             fmt.Sprintf("%s v%d", source.Name, next),
		Status:           models.FlowStatusDraft,
		TotalCost:        source.TotalCost,
		TotalTimeMinutes: source.TotalTimeMinutes,
		Nodes:            make([]*models.FlowNode, 0, len(source.Nodes)),
		Edges:            make([]*models.FlowEdge, 0, len(source.Edges)),
	}

	nodeIDs := make(map[string]string, len(source.Nodes))

	for _, n := range source.Nodes {
		node := *n
		node.ID = uuid.NewString()
		node.FlowID = duplicate.ID
		nodeIDs[n.ID] = node.ID
		duplicate.Nodes = append(duplicate.Nodes, &node)
	}

	for _, e := range source.Edges {
		edge := *e
		edge.ID = uuid.NewString()
		edge.FlowID = duplicate.ID
		edge.OriginNodeID = nodeIDs[e.OriginNodeID]
		edge.DestinationNodeID = nodeIDs[e.DestinationNodeID]
		duplicate.Edges = append(duplicate.Edges, &edge)
	}

	err = repo.Create(ctx, duplicate)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	f.logger.InfoContext(ctx, "Flow duplicated",
		"source_flow_id", flowID, "flow_id", duplicate.ID, "version", duplicate.Version)

	return f.savedResult(ctx, duplicate.ID, events.FlowDuplicated)
}

// PromoteToCurrent makes an active flow the style's current one.
func (f *Flow) PromoteToCurrent(ctx context.Context, flowID string) (*models.Flow, error) {
	repo := f.persistence.FlowRepository()

	flow, err := repo.GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	if flow.Status != models.FlowStatusActive {
		return nil, &ServiceError{
			Op:      "PromoteToCurrent",
			Code:    "conflict",
			Message: "only active flows can become current",
			Err:     ErrFlowNotActive,
		}
	}

	err = repo.Promote(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to promote flow: %w", err)
	}

	f.publish(ctx, flow.StyleID, flowID, events.FlowPromoted)

	return f.Get(ctx, flowID)
}

// Activate marks a flow as active once it passes consistency validation.
func (f *Flow) Activate(ctx context.Context, flowID string) (*FlowSaveResult, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	report, err := f.validate(ctx, flow)
	if err != nil {
		return nil, err
	}

	if !report.IsValid {
		return nil, NewViolationError("Activate", ErrInconsistentFlow, report.Errors)
	}

	err = f.persistence.FlowRepository().UpdateStatus(ctx, flowID, models.FlowStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to activate flow: %w", err)
	}

	return f.savedResult(ctx, flowID, events.FlowActivated)
}

// Delete removes a flow. The style's only flow cannot be deleted.
func (f *Flow) Delete(ctx context.Context, flowID string) error {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return fmt.Errorf("failed to load flow: %w", err)
	}

	err = f.persistence.FlowRepository().Delete(ctx, flowID)
	if err != nil {
		if persistence.IsSoleFlow(err) {
			return &ServiceError{
				Op:      "Delete",
				Code:    "conflict",
				Message: "the only flow of a style cannot be deleted",
				Err:     ErrSoleFlow,
			}
		}

		return fmt.Errorf("failed to delete flow: %w", err)
	}

	f.publish(ctx, flow.StyleID, flowID, events.FlowDeleted)

	return nil
}

// RefreshTotals recomputes the per-unit cost and time of a flow and caches them on it.
func (f *Flow) RefreshTotals(ctx context.Context, flowID string) (*FlowTotals, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	aggregate := costing.AggregateFlow(flow.Nodes, 1)

	err = f.persistence.FlowRepository().UpdateTotals(ctx, flowID, aggregate.TotalCost, aggregate.TotalTimeMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow totals: %w", err)
	}

	return &FlowTotals{
		FlowID:           flowID,
		TotalCost:        aggregate.TotalCost,
		TotalTimeMinutes: aggregate.TotalTimeMinutes,
		Breakdown:        aggregate.Breakdown,
	}, nil
}

// RefreshCurrent refreshes the totals of the current flow of every style and returns
// how many flows were updated. Styles without a current flow are skipped.
func (f *Flow) RefreshCurrent(ctx context.Context) (int, error) {
	styles, err := f.persistence.CatalogRepository().ListStyles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list styles: %w", err)
	}

	refreshed := 0

	for _, style := range styles {
		flow, err := f.persistence.FlowRepository().Current(ctx, style.ID)
		if err != nil {
			if persistence.IsCurrentFlowNotFound(err) {
				continue
			}

			return refreshed, fmt.Errorf("failed to load current flow of style %s: %w", style.ID, err)
		}

		_, err = f.RefreshTotals(ctx, flow.ID)
		if err != nil {
			return refreshed, err
		}

		refreshed++
	}

	return refreshed, nil
}

// Validate checks a stored flow against the style's active BOM.
func (f *Flow) Validate(ctx context.Context, flowID string) (*costing.ConsistencyReport, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	report, err := f.validate(ctx, flow)
	if err != nil {
		return nil, err
	}

	return &report, nil
}

func (f *Flow) validate(ctx context.Context, flow *models.Flow) (costing.ConsistencyReport, error) {
	lines, err := f.persistence.BomRepository().ActiveLines(ctx, flow.StyleID)
	if err != nil {
		return costing.ConsistencyReport{}, fmt.Errorf("failed to load bom: %w", err)
	}

	return costing.ValidateFlowConsistency(flow, lines), nil
}

// publish announces a flow change. The change is already stored, so failures are logged.
func (f *Flow) publish(ctx context.Context, styleID, flowID string, change events.FlowChange) {
	if f.publisher == nil {
		return
	}

	err := f.publisher.Publish(ctx, flowID, events.NewFlowChanged(styleID, flowID, change))
	if err != nil {
		f.logger.ErrorContext(ctx, "Failed to publish flow event", "flow_id", flowID, "change", change, "error", err)
	}
}
