package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bom reports on and maintains the bill of materials of a style.
type Bom struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewBom(persistence persistence.Persistence, logger *slog.Logger) *Bom {
	return &Bom{
		persistence: persistence,
		logger:      logger,
	}
}

type BomTotals struct {
	Materials decimal.Decimal `json:"materials"`
	PerPiece  decimal.Decimal `json:"per_piece"`
}

type BomAvailability struct {
	Sufficient bool `json:"sufficient"`
	LinesShort int  `json:"lines_short"`
	TotalLines int  `json:"total_lines"`
}

// BomResolution is a style's active BOM evaluated for a size, an optional color and a run size.
type BomResolution struct {
	StyleID        string                 `json:"style_id"`
	SizeID         string                 `json:"size_id"`
	ColorID        string                 `json:"color_id,omitempty"`
	Pieces         int                    `json:"pieces"`
	SizeMultiplier decimal.Decimal        `json:"size_multiplier"`
	Lines          []costing.ResolvedLine `json:"lines"`
	Totals         BomTotals              `json:"totals"`
	Availability   BomAvailability        `json:"availability"`
	Alerts         []costing.Alert        `json:"alerts"`
}

// ResolveForVariant evaluates the active BOM of a style. colorID may be empty, in which
// case no surcharges apply.
func (b *Bom) ResolveForVariant(ctx context.Context, styleID, sizeID, colorID string, pieces int) (*BomResolution, error) {
	if pieces == 0 {
		pieces = 1
	}

	var violations []string

	if sizeID == "" {
		violations = append(violations, "size_id is required")
	}

	if pieces < 1 {
		violations = append(violations, "pieces must be at least 1")
	}

	if len(violations) > 0 {
		return nil, NewViolationError("ResolveForVariant", ErrInvalidRequest, violations)
	}

	catalog := b.persistence.CatalogRepository()

	_, err := catalog.GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	size, err := catalog.GetSize(ctx, sizeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load size: %w", err)
	}

	surcharges := models.Surcharges{}

	if colorID != "" {
		_, err = catalog.GetColor(ctx, colorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load color: %w", err)
		}

		costs, err := catalog.ColorCosts(ctx, colorID)
		if err != nil {
			return nil, fmt.Errorf("failed to load color surcharges: %w", err)
		}

		surcharges = models.NewSurcharges(costs)
	}

	lines, err := b.activeLines(ctx, styleID)
	if err != nil {
		return nil, err
	}

	multiplier := size.Multiplier()
	resolution := &BomResolution{
		StyleID:        styleID,
		SizeID:         sizeID,
		ColorID:        colorID,
		Pieces:         pieces,
		SizeMultiplier: multiplier,
		Lines:          make([]costing.ResolvedLine, 0, len(lines)),
		Alerts:         make([]costing.Alert, 0),
		Availability:   BomAvailability{Sufficient: true, TotalLines: len(lines)},
	}

	perPiece := decimal.Zero

	for _, line := range lines {
		resolved, err := costing.ResolveBomLine(line, multiplier, colorID, surcharges, pieces)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bom: %w", err)
		}

		perPiece = perPiece.Add(resolved.LineCost)

		if !resolved.Stock.Sufficient {
			resolution.Availability.Sufficient = false
			resolution.Availability.LinesShort++
		}

		resolution.Lines = append(resolution.Lines, resolved)
		resolution.Alerts = append(resolution.Alerts, resolved.Alerts...)
	}

	resolution.Totals = BomTotals{
		Materials: perPiece.Mul(decimal.NewFromInt(int64(pieces))),
		PerPiece:  perPiece,
	}

	return resolution, nil
}

// Statistics summarises the active BOM of a style. Without a size the multiplier is one.
func (b *Bom) Statistics(ctx context.Context, styleID, sizeID string) (*costing.BomStats, error) {
	_, err := b.persistence.CatalogRepository().GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	multiplier := decimal.NewFromInt(1)

	if sizeID != "" {
		size, err := b.persistence.CatalogRepository().GetSize(ctx, sizeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load size: %w", err)
		}

		multiplier = size.Multiplier()
	}

	lines, err := b.persistence.BomRepository().ActiveLines(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bom: %w", err)
	}

	stats := costing.BomStatistics(lines, multiplier)

	return &stats, nil
}

// BomLineInput is one submitted line of a bill of materials.
type BomLineInput struct {
	MaterialID     string          `json:"material_id"      validate:"required"`
	ProcessID      string          `json:"process_id"`
	BaseQuantity   decimal.Decimal `json:"base_quantity"`
	AppliesToSize  bool            `json:"applies_to_size"`
	AppliesToColor bool            `json:"applies_to_color"`
	IsCritical     bool            `json:"is_critical"`
}

// ReplaceLines swaps the active BOM of a style for the given lines. Previous lines are
// deactivated, not deleted.
func (b *Bom) ReplaceLines(ctx context.Context, styleID string, inputs []BomLineInput) ([]*models.BomLine, error) {
	catalog := b.persistence.CatalogRepository()

	_, err := catalog.GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	violations := make([]string, 0)
	seen := make(map[string]bool, len(inputs))
	lines := make([]*models.BomLine, 0, len(inputs))

	for i, in := range inputs {
		if seen[in.MaterialID] {
			violations = append(violations, fmt.Sprintf("line %d: material %s is already in the bom", i+1, in.MaterialID))

			continue
		}

		seen[in.MaterialID] = true

		if in.BaseQuantity.IsNegative() {
			violations = append(violations, fmt.Sprintf("line %d: base quantity must not be negative", i+1))
		}

		_, err = catalog.GetMaterial(ctx, in.MaterialID)

		var ok bool

		ok, err = found(err)
		if err != nil {
			return nil, err
		}

		if !ok {
			violations = append(violations, fmt.Sprintf("line %d: material %s does not exist", i+1, in.MaterialID))
		}

		if in.ProcessID != "" {
			_, err = catalog.GetProcess(ctx, in.ProcessID)

			ok, err = found(err)
			if err != nil {
				return nil, err
			}

			if !ok {
				violations = append(violations, fmt.Sprintf("line %d: process %s does not exist", i+1, in.ProcessID))
			}
		}

		lines = append(lines, &models.BomLine{
			ID:             uuid.NewString(),
			StyleID:        styleID,
			MaterialID:     in.MaterialID,
			ProcessID:      in.ProcessID,
			BaseQuantity:   in.BaseQuantity,
			AppliesToSize:  in.AppliesToSize,
			AppliesToColor: in.AppliesToColor,
			IsCritical:     in.IsCritical,
			Status:         models.StatusActive,
		})
	}

	if len(violations) > 0 {
		return nil, NewViolationError("ReplaceLines", ErrInvalidBom, violations)
	}

	err = b.persistence.BomRepository().ReplaceLines(ctx, styleID, lines)
	if err != nil {
		return nil, fmt.Errorf("failed to replace bom: %w", err)
	}

	b.logger.InfoContext(ctx, "Bill of materials replaced", "style_id", styleID, "lines", len(lines))

	return b.persistence.BomRepository().ActiveLines(ctx, styleID)
}

// found turns the error of a catalog lookup into an existence check.
func found(err error) (bool, error) {
	if err == nil {
		return true, nil
	}

	if persistence.IsNotFound(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to load catalog entry: %w", err)
}

func (b *Bom) activeLines(ctx context.Context, styleID string) ([]*models.BomLine, error) {
	lines, err := b.persistence.BomRepository().ActiveLines(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bom: %w", err)
	}

	if len(lines) == 0 {
		return nil, &ServiceError{
			Op:      "ResolveForVariant",
			Code:    "bom_not_found",
			Message: "the style has no active bill of materials",
			Err:     ErrNoActiveBom,
		}
	}

	return lines, nil
}
