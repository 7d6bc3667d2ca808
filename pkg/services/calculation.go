package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/events"
	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/otelhelper"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Calculation computes and reports variant costs.
type Calculation struct {
	persistence persistence.Persistence
	cache       cache.Cache
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewCalculation creates a new calculation service. A nil cache, publisher or tracer disables
// caching, event publishing or tracing respectively.
func NewCalculation(
	persistence persistence.Persistence,
	calculationCache cache.Cache,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Calculation {
	if calculationCache == nil {
		calculationCache = cache.Noop{}
	}

	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Calculation{
		persistence: persistence,
		cache:       calculationCache,
		publisher:   publisher,
		tracer:      tracer,
		logger:      logger,
	}
}

// CalculateVariantRequest selects the variant, run size and optionally the flow to cost.
type CalculateVariantRequest struct {
	StyleID string `json:"style_id" validate:"required"`
	ColorID string `json:"color_id" validate:"required"`
	SizeID  string `json:"size_id"  validate:"required"`
	Pieces  int    `json:"pieces"   validate:"omitempty,min=1"`
	FlowID  string `json:"flow_id,omitempty"`
}

func (r CalculateVariantRequest) violations() []string {
	var violations []string

	if r.StyleID == "" {
		violations = append(violations, "style_id is required")
	}

	if r.ColorID == "" {
		violations = append(violations, "color_id is required")
	}

	if r.SizeID == "" {
		violations = append(violations, "size_id is required")
	}

	if r.Pieces < 1 {
		violations = append(violations, "pieces must be at least 1")
	}

	return violations
}

type StyleRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type VariantRef struct {
	ID             string          `json:"id"`
	SKU            string          `json:"sku"`
	ColorID        string          `json:"color_id"`
	ColorName      string          `json:"color_name"`
	SizeID         string          `json:"size_id"`
	SizeCode       string          `json:"size_code"`
	Pieces         int             `json:"pieces"`
	SizeMultiplier decimal.Decimal `json:"size_multiplier"`
}

type FlowRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

type CostSummary struct {
	Materials decimal.Decimal `json:"materials"`
	Processes decimal.Decimal `json:"processes"`
	Total     decimal.Decimal `json:"total"`
	PerPiece  decimal.Decimal `json:"per_piece"`
}

// TimeSummary is in minutes. Time does not scale with pieces, so both values match.
type TimeSummary struct {
	Total    decimal.Decimal `json:"total"`
	PerPiece decimal.Decimal `json:"per_piece"`
}

type BreakdownStats struct {
	BomLines               int             `json:"bom_lines"`
	FlowNodes              int             `json:"flow_nodes"`
	MaterialCostPercentage decimal.Decimal `json:"material_cost_percentage"`
	ProcessCostPercentage  decimal.Decimal `json:"process_cost_percentage"`
}

// CalculationBreakdown is the full result of costing a variant.
type CalculationBreakdown struct {
	CalculationID string                 `json:"calculation_id"`
	Version       int                    `json:"version"`
	Style         StyleRef               `json:"style"`
	Variant       VariantRef             `json:"variant"`
	Flow          FlowRef                `json:"flow"`
	Costs         CostSummary            `json:"costs"`
	Time          TimeSummary            `json:"time"`
	BomLines      []costing.ResolvedLine `json:"bom_lines"`
	FlowNodes     []costing.NodeDetail   `json:"flow_nodes"`
	Statistics    BreakdownStats         `json:"statistics"`
	CalculatedAt  time.Time              `json:"calculated_at"`
}

type calculationInputs struct {
	style      *models.Style
	color      *models.Color
	size       *models.Size
	flow       *models.Flow
	lines      []*models.BomLine
	surcharges models.Surcharges
}

// CalculateVariant costs a (style, color, size) variant for a production run and stores
// the result as the variant's new current calculation.
func (c *Calculation) CalculateVariant(ctx context.Context, req CalculateVariantRequest) (*CalculationBreakdown, error) {
	if req.Pieces == 0 {
		req.Pieces = 1
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "services.CalculateVariant",
		attribute.String(otelhelper.StyleIDKey, req.StyleID),
		attribute.String(otelhelper.ColorIDKey, req.ColorID),
		attribute.String(otelhelper.SizeIDKey, req.SizeID),
		attribute.Int(otelhelper.PiecesKey, req.Pieces),
	)
	defer span.End()

	breakdown, err := c.calculate(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.CalculationIDKey, breakdown.CalculationID),
		attribute.String(otelhelper.VariantIDKey, breakdown.Variant.ID),
		attribute.String(otelhelper.FlowIDKey, breakdown.Flow.ID),
	)

	return breakdown, nil
}

func (c *Calculation) calculate(ctx context.Context, req CalculateVariantRequest) (*CalculationBreakdown, error) {
	violations := req.violations()
	if len(violations) > 0 {
		return nil, NewViolationError("CalculateVariant", ErrInvalidRequest, violations)
	}

	in, err := c.loadInputs(ctx, req)
	if err != nil {
		return nil, err
	}

	pieces := decimal.NewFromInt(int64(req.Pieces))
	multiplier := in.size.Multiplier()

	resolved := make([]costing.ResolvedLine, 0, len(in.lines))
	materialCost := decimal.Zero

	for _, line := range in.lines {
		r, err := costing.ResolveBomLine(line, multiplier, in.color.ID, in.surcharges, req.Pieces)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bom: %w", err)
		}

		resolved = append(resolved, r)
		materialCost = materialCost.Add(r.LineCost.Mul(pieces))
	}

	aggregate := costing.AggregateFlow(in.flow.Nodes, req.Pieces)
	processCost := aggregate.TotalCost
	totalCost := materialCost.Add(processCost)

	record := &persistence.CalculationRecord{
		CalculationID:    uuid.NewString(),
		StyleID:          in.style.ID,
		ColorID:          in.color.ID,
		SizeID:           in.size.ID,
		SKU:              costing.GenerateSKU(in.style.Code, in.color, in.size.Code),
		FlowID:           in.flow.ID,
		MaterialCost:     materialCost,
		ProcessCost:      processCost,
		TotalCost:        totalCost,
		TotalTimeMinutes: aggregate.TotalTimeMinutes,
		Pieces:           req.Pieces,
		CalculatedAt:     time.Now().UTC(),
	}

	variant, calculation, err := c.persistence.CalculationRepository().Record(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record calculation: %w", err)
	}

	breakdown := &CalculationBreakdown{
		CalculationID: calculation.ID,
		Version:       calculation.Version,
		Style:         StyleRef{ID: in.style.ID, Code: in.style.Code, Name: in.style.Name},
		Variant: VariantRef{
			ID:             variant.ID,
			SKU:            variant.SKU,
			ColorID:        in.color.ID,
			ColorName:      in.color.Name,
			SizeID:         in.size.ID,
			SizeCode:       in.size.Code,
			Pieces:         req.Pieces,
			SizeMultiplier: multiplier,
		},
		Flow: FlowRef{ID: in.flow.ID, Name: in.flow.Name, Version: in.flow.Version},
		Costs: CostSummary{
			Materials: materialCost,
			Processes: processCost,
			Total:     totalCost,
			PerPiece:  totalCost.Div(pieces),
		},
		Time: TimeSummary{
			Total:    aggregate.TotalTimeMinutes,
			PerPiece: aggregate.TotalTimeMinutes,
		},
		BomLines:  resolved,
		FlowNodes: aggregate.Nodes,
		Statistics: BreakdownStats{
			BomLines:               len(resolved),
			FlowNodes:              aggregate.Breakdown.Nodes,
			MaterialCostPercentage: calculation.MaterialCostPercentage(),
			ProcessCostPercentage:  calculation.ProcessCostPercentage(),
		},
		CalculatedAt: calculation.CalculatedAt,
	}

	c.afterRecord(ctx, breakdown)

	return breakdown, nil
}

// loadInputs reads everything a calculation needs before any write happens.
func (c *Calculation) loadInputs(ctx context.Context, req CalculateVariantRequest) (*calculationInputs, error) {
	catalog := c.persistence.CatalogRepository()

	style, err := catalog.GetStyle(ctx, req.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	color, err := catalog.GetColor(ctx, req.ColorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load color: %w", err)
	}

	size, err := catalog.GetSize(ctx, req.SizeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load size: %w", err)
	}

	flow, err := c.resolveFlow(ctx, style.ID, req.FlowID)
	if err != nil {
		return nil, err
	}

	lines, err := c.persistence.BomRepository().ActiveLines(ctx, style.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bom: %w", err)
	}

	costs, err := catalog.ColorCosts(ctx, color.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load color surcharges: %w", err)
	}

	return &calculationInputs{
		style:      style,
		color:      color,
		size:       size,
		flow:       flow,
		lines:      lines,
		surcharges: models.NewSurcharges(costs),
	}, nil
}

func (c *Calculation) resolveFlow(ctx context.Context, styleID, flowID string) (*models.Flow, error) {
	flows := c.persistence.FlowRepository()

	if flowID == "" {
		flow, err := flows.Current(ctx, styleID)
		if err != nil {
			if persistence.IsCurrentFlowNotFound(err) {
				return nil, NewValidationError("CalculateVariant", "no_current_flow",
					"the style has no current flow; pass flow_id or promote a flow", ErrNoCurrentFlow)
			}

			return nil, fmt.Errorf("failed to load current flow: %w", err)
		}

		return flow, nil
	}

	flow, err := flows.GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	if flow.StyleID != styleID {
		return nil, persistence.NewEntityError("CalculateVariant", "flow", flowID, persistence.ErrFlowNotFound)
	}

	return flow, nil
}

// afterRecord refreshes the cache and publishes the event. The calculation is already
// committed, so failures here are logged and not returned.
func (c *Calculation) afterRecord(ctx context.Context, breakdown *CalculationBreakdown) {
	err := c.cache.Set(ctx, cache.CalculationKey(breakdown.CalculationID), breakdown)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to cache calculation", "calculation_id", breakdown.CalculationID, "error", err)
	}

	err = c.cache.Delete(ctx, cache.StyleSummaryKey(breakdown.Style.ID))
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to invalidate style summary", "style_id", breakdown.Style.ID, "error", err)
	}

	if c.publisher == nil {
		return
	}

	event := events.NewCalculationCreated(breakdown.Style.ID, breakdown.Variant.ID, breakdown.Flow.ID,
		breakdown.CalculationID, breakdown.Version, breakdown.Costs.Total, breakdown.Time.Total)

	err = c.publisher.Publish(ctx, breakdown.Variant.ID, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish calculation event", "calculation_id", breakdown.CalculationID, "error", err)
	}
}

// CalculationSummary is a stored calculation with its variant and, when still cached,
// the breakdown produced when it was computed.
type CalculationSummary struct {
	*models.VariantCalculation

	MaterialCostPercentage decimal.Decimal       `json:"material_cost_percentage"`
	ProcessCostPercentage  decimal.Decimal       `json:"process_cost_percentage"`
	FlowName               string                `json:"flow_name"`
	Variant                *models.Variant       `json:"variant,omitempty"`
	Breakdown              *CalculationBreakdown `json:"breakdown,omitempty"`
}

// Get returns a stored calculation.
func (c *Calculation) Get(ctx context.Context, calculationID string) (*CalculationSummary, error) {
	calculation, err := c.persistence.CalculationRepository().GetByID(ctx, calculationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load calculation: %w", err)
	}

	summary, err := c.summarize(ctx, calculation)
	if err != nil {
		return nil, err
	}

	var breakdown CalculationBreakdown

	err = c.cache.Get(ctx, cache.CalculationKey(calculationID), &breakdown)

	switch {
	case err == nil:
		summary.Breakdown = &breakdown
	case !errors.Is(err, cache.ErrMiss):
		c.logger.WarnContext(ctx, "Failed to read cached calculation", "calculation_id", calculationID, "error", err)
	}

	return summary, nil
}

func (c *Calculation) summarize(ctx context.Context, calculation *models.VariantCalculation) (*CalculationSummary, error) {
	variant, err := c.persistence.CalculationRepository().GetVariant(ctx, calculation.VariantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}

	return &CalculationSummary{
		VariantCalculation:     calculation,
		MaterialCostPercentage: calculation.MaterialCostPercentage(),
		ProcessCostPercentage:  calculation.ProcessCostPercentage(),
		FlowName:               c.flowName(ctx, calculation.FlowID),
		Variant:                variant,
	}, nil
}

// flowName returns the name of a flow, or an empty string once the flow was deleted.
func (c *Calculation) flowName(ctx context.Context, flowID string) string {
	flow, err := c.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		if !persistence.IsFlowNotFound(err) {
			c.logger.WarnContext(ctx, "Failed to load flow name", "flow_id", flowID, "error", err)
		}

		return ""
	}

	return flow.Name
}
