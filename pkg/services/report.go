package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

// VariantHistory is every stored calculation of a variant, newest first.
type VariantHistory struct {
	Variant      *models.Variant              `json:"variant"`
	Calculations []*models.VariantCalculation `json:"calculations"`
	Current      *models.VariantCalculation   `json:"current"`
	Count        int                          `json:"count"`
}

// History returns the calculation history of a variant. It fails with a not found error
// when the variant was never calculated.
func (c *Calculation) History(ctx context.Context, styleID, colorID, sizeID string) (*VariantHistory, error) {
	repo := c.persistence.CalculationRepository()

	variant, err := repo.FindVariant(ctx, styleID, colorID, sizeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find variant: %w", err)
	}

	calculations, err := repo.ListByVariant(ctx, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations: %w", err)
	}

	history := &VariantHistory{
		Variant:      variant,
		Calculations: calculations,
		Count:        len(calculations),
	}

	for _, calc := range calculations {
		if calc.IsCurrent {
			history.Current = calc

			break
		}
	}

	return history, nil
}

type CalculationDifference struct {
	MaterialCost         decimal.Decimal `json:"material_cost"`
	ProcessCost          decimal.Decimal `json:"process_cost"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalTimeMinutes     decimal.Decimal `json:"total_time_minutes"`
	CostChangePercentage decimal.Decimal `json:"cost_change_percentage"`
	TimeChangePercentage decimal.Decimal `json:"time_change_percentage"`
}

// CalculationComparison sets a calculation against a base one.
type CalculationComparison struct {
	Base        *CalculationSummary   `json:"base"`
	Other       *CalculationSummary   `json:"other"`
	Differences CalculationDifference `json:"differences"`
}

// Compare reports how other differs from base. Percentage changes are relative to the
// base and are zero when the base value is zero.
func (c *Calculation) Compare(ctx context.Context, baseID, otherID string) (*CalculationComparison, error) {
	if baseID == "" || otherID == "" {
		return nil, NewViolationError("Compare", ErrInvalidRequest, []string{"both calculation ids are required"})
	}

	repo := c.persistence.CalculationRepository()

	base, err := repo.GetByID(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base calculation: %w", err)
	}

	other, err := repo.GetByID(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load compared calculation: %w", err)
	}

	baseSummary, err := c.summarize(ctx, base)
	if err != nil {
		return nil, err
	}

	otherSummary, err := c.summarize(ctx, other)
	if err != nil {
		return nil, err
	}

	costDelta := other.TotalCost.Sub(base.TotalCost)
	timeDelta := other.TotalTimeMinutes.Sub(base.TotalTimeMinutes)

	return &CalculationComparison{
		Base:  baseSummary,
		Other: otherSummary,
		Differences: CalculationDifference{
			MaterialCost:         other.MaterialCost.Sub(base.MaterialCost),
			ProcessCost:          other.ProcessCost.Sub(base.ProcessCost),
			TotalCost:            costDelta,
			TotalTimeMinutes:     timeDelta,
			CostChangePercentage: models.Percentage(costDelta, base.TotalCost),
			TimeChangePercentage: models.Percentage(timeDelta, base.TotalTimeMinutes),
		},
	}, nil
}

type CostStats struct {
	Average          decimal.Decimal `json:"average"`
	Minimum          decimal.Decimal `json:"minimum"`
	Maximum          decimal.Decimal `json:"maximum"`
	AverageMaterials decimal.Decimal `json:"average_materials"`
	AverageProcesses decimal.Decimal `json:"average_processes"`
}

type TimeStats struct {
	Average decimal.Decimal `json:"average"`
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

// TargetCompliance compares the average cost and time of a style with its targets.
// A nil field means the style has no such target.
type TargetCompliance struct {
	TargetCost        decimal.NullDecimal `json:"target_cost"`
	TargetTimeMinutes decimal.NullDecimal `json:"target_time_minutes"`
	MeetsTargetCost   *bool               `json:"meets_target_cost"`
	MeetsTargetTime   *bool               `json:"meets_target_time"`
}

// StyleSummary aggregates the current calculation of every variant of a style.
type StyleSummary struct {
	Style              *models.Style              `json:"style"`
	TotalVariants      int                        `json:"total_variants"`
	CalculatedVariants int                        `json:"calculated_variants"`
	Costs              *CostStats                 `json:"costs,omitempty"`
	Time               *TimeStats                 `json:"time,omitempty"`
	MostExpensive      *models.VariantCalculation `json:"most_expensive,omitempty"`
	LeastExpensive     *models.VariantCalculation `json:"least_expensive,omitempty"`
	LastUpdatedAt      *time.Time                 `json:"last_updated_at,omitempty"`
	Targets            TargetCompliance           `json:"targets"`
}

// StyleSummary summarises the current calculations of a style. A style without
// calculations yields a summary with zero calculated variants.
func (c *Calculation) StyleSummary(ctx context.Context, styleID string) (*StyleSummary, error) {
	var cached StyleSummary

	err := c.cache.Get(ctx, cache.StyleSummaryKey(styleID), &cached)

	switch {
	case err == nil:
		return &cached, nil
	case !errors.Is(err, cache.ErrMiss):
		c.logger.WarnContext(ctx, "Failed to read cached style summary", "style_id", styleID, "error", err)
	}

	style, err := c.persistence.CatalogRepository().GetStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	repo := c.persistence.CalculationRepository()

	variants, err := repo.ListVariantsByStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}

	current, err := repo.CurrentByStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list current calculations: %w", err)
	}

	summary := summarizeStyle(style, len(variants), current)

	err = c.cache.Set(ctx, cache.StyleSummaryKey(styleID), summary)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to cache style summary", "style_id", styleID, "error", err)
	}

	return summary, nil
}

func summarizeStyle(style *models.Style, totalVariants int, current []*models.VariantCalculation) *StyleSummary {
	summary := &StyleSummary{
		Style:              style,
		TotalVariants:      totalVariants,
		CalculatedVariants: len(current),
		Targets: TargetCompliance{
			TargetCost:        style.TargetCost,
			TargetTimeMinutes: style.TargetTimeMinutes,
		},
	}

	if len(current) == 0 {
		return summary
	}

	count := decimal.NewFromInt(int64(len(current)))
	first := current[0]

	costs := &CostStats{Minimum: first.TotalCost, Maximum: first.TotalCost}
	times := &TimeStats{Minimum: first.TotalTimeMinutes, Maximum: first.TotalTimeMinutes}

	var totalCost, totalMaterials, totalProcesses, totalTime decimal.Decimal

	mostExpensive, leastExpensive := first, first
	lastUpdated := first.CalculatedAt

	for _, calc := range current {
		totalCost = totalCost.Add(calc.TotalCost)
		totalMaterials = totalMaterials.Add(calc.MaterialCost)
		totalProcesses = totalProcesses.Add(calc.ProcessCost)
		totalTime = totalTime.Add(calc.TotalTimeMinutes)

		costs.Minimum = decimal.Min(costs.Minimum, calc.TotalCost)
		costs.Maximum = decimal.Max(costs.Maximum, calc.TotalCost)
		times.Minimum = decimal.Min(times.Minimum, calc.TotalTimeMinutes)
		times.Maximum = decimal.Max(times.Maximum, calc.TotalTimeMinutes)

		if calc.TotalCost.GreaterThan(mostExpensive.TotalCost) {
			mostExpensive = calc
		}

		if calc.TotalCost.LessThan(leastExpensive.TotalCost) {
			leastExpensive = calc
		}

		if calc.CalculatedAt.After(lastUpdated) {
			lastUpdated = calc.CalculatedAt
		}
	}

	costs.Average = totalCost.Div(count).Round(4)
	costs.AverageMaterials = totalMaterials.Div(count).Round(4)
	costs.AverageProcesses = totalProcesses.Div(count).Round(4)
	times.Average = totalTime.Div(count).Round(4)

	summary.Costs = costs
	summary.Time = times
	summary.MostExpensive = mostExpensive
	summary.LeastExpensive = leastExpensive
	summary.LastUpdatedAt = &lastUpdated

	if style.TargetCost.Valid {
		meets := costs.Average.LessThanOrEqual(style.TargetCost.Decimal)
		summary.Targets.MeetsTargetCost = &meets
	}

	if style.TargetTimeMinutes.Valid {
		meets := times.Average.LessThanOrEqual(style.TargetTimeMinutes.Decimal)
		summary.Targets.MeetsTargetTime = &meets
	}

	return summary
}
