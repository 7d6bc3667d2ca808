// Package costing implements the pure cost and time aggregation rules for styles,
// their bills of materials and their process flows.
package costing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrMaterialNotLoaded is returned when a BOM line is resolved without its material.
var ErrMaterialNotLoaded = errors.New("bom line material not loaded")

type AlertType string

const (
	AlertInsufficientStock AlertType = "insufficient_stock"
	AlertCriticalLowStock  AlertType = "critical_low_stock"
	AlertInactiveMaterial  AlertType = "inactive_material"
	AlertColorOnNonDye     AlertType = "color_on_non_dye"
)

type AlertLevel string

const (
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelError   AlertLevel = "error"
)

// Alert is an informational finding attached to a resolved BOM line. Alerts never fail a calculation.
type Alert struct {
	Type         AlertType        `json:"type"`
	Level        AlertLevel       `json:"level"`
	MaterialID   string           `json:"material_id"`
	MaterialCode string           `json:"material_code"`
	Message      string           `json:"message"`
	Required     *decimal.Decimal `json:"required,omitempty"`
	Available    *decimal.Decimal `json:"available,omitempty"`
	Shortfall    *decimal.Decimal `json:"shortfall,omitempty"`
}

// StockCheck compares the quantity a production run needs against the material stock.
type StockCheck struct {
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Shortfall  decimal.Decimal `json:"shortfall"`
	Sufficient bool            `json:"sufficient"`
}

// ResolvedLine is a BOM line evaluated for a size multiplier and color.
type ResolvedLine struct {
	Line          *models.BomLine `json:"line"`
	FinalQuantity decimal.Decimal `json:"final_quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Surcharge     decimal.Decimal `json:"surcharge"`
	LineCost      decimal.Decimal `json:"line_cost"`
	Stock         StockCheck      `json:"stock"`
	Alerts        []Alert         `json:"alerts"`
}

// ResolveBomLine computes the quantity and cost of one unit of a style for a BOM line.
//
// The base quantity is scaled by sizeMultiplier only when the line applies to size.
// The color surcharge is added to the unit cost only when the line applies to color,
// the material is a dye and a surcharge exists for (material, colorID). Stock is
// checked against the final quantity times pieces; pieces below one count as one.
func ResolveBomLine(line *models.BomLine, sizeMultiplier decimal.Decimal, colorID string, surcharges models.Surcharges, pieces int) (ResolvedLine, error) {
	material := line.Material
	if material == nil {
		return ResolvedLine{}, fmt.Errorf("resolve line %s: %w", line.ID, ErrMaterialNotLoaded)
	}

	finalQuantity := line.BaseQuantity
	if line.AppliesToSize {
		finalQuantity = line.BaseQuantity.Mul(sizeMultiplier)
	}

	surcharge := decimal.Zero

	if line.AppliesToColor && material.IsDye() && colorID != "" {
		if extra, ok := surcharges.Lookup(material.ID, colorID); ok {
			surcharge = extra
		}
	}

	unitCost := material.UnitCost.Add(surcharge)

	stock := CheckStock(finalQuantity, material.Stock, pieces)

	return ResolvedLine{
		Line:          line,
		FinalQuantity: finalQuantity,
		UnitCost:      unitCost,
		Surcharge:     surcharge,
		LineCost:      finalQuantity.Mul(unitCost),
		Stock:         stock,
		Alerts:        lineAlerts(line, stock),
	}, nil
}

// CheckStock reports whether available stock covers quantity × pieces.
func CheckStock(quantity, available decimal.Decimal, pieces int) StockCheck {
	if pieces < 1 {
		pieces = 1
	}

	required := quantity.Mul(decimal.NewFromInt(int64(pieces)))
	shortfall := decimal.Max(decimal.Zero, required.Sub(available))

	return StockCheck{
		Required:   required,
		Available:  available,
		Shortfall:  shortfall,
		Sufficient: shortfall.IsZero(),
	}
}

func lineAlerts(line *models.BomLine, stock StockCheck) []Alert {
	material := line.Material
	alerts := make([]Alert, 0)

	if !stock.Sufficient {
		required, available, shortfall := stock.Required, stock.Available, stock.Shortfall
		alerts = append(alerts, Alert{
			Type:         AlertInsufficientStock,
			Level:        AlertLevelError,
			MaterialID:   material.ID,
			MaterialCode: material.Code,
			Message:      fmt.Sprintf("insufficient stock for %s: required %s, available %s", material.Name, required, available),
			Required:     &required,
			Available:    &available,
			Shortfall:    &shortfall,
		})
	}

	if material.IsCritical && material.Stock.LessThanOrEqual(models.LowStockThreshold) {
		available := material.Stock
		alerts = append(alerts, Alert{
			Type:         AlertCriticalLowStock,
			Level:        AlertLevelWarning,
			MaterialID:   material.ID,
			MaterialCode: material.Code,
			Message:      fmt.Sprintf("critical material %s has low stock (%s)", material.Name, available),
			Available:    &available,
		})
	}

	if !material.IsActive() {
		alerts = append(alerts, Alert{
			Type:         AlertInactiveMaterial,
			Level:        AlertLevelError,
			MaterialID:   material.ID,
			MaterialCode: material.Code,
			Message:      fmt.Sprintf("material %s is inactive", material.Name),
		})
	}

	if line.AppliesToColor && !material.IsDye() {
		alerts = append(alerts, Alert{
			Type:         AlertColorOnNonDye,
			Level:        AlertLevelWarning,
			MaterialID:   material.ID,
			MaterialCode: material.Code,
			Message:      fmt.Sprintf("material %s applies to color but is not a dye", material.Name),
		})
	}

	return alerts
}

// BomStats aggregates a style's active BOM.
type BomStats struct {
	TotalLines        int                         `json:"total_lines"`
	CriticalLines     int                         `json:"critical_lines"`
	SizeLines         int                         `json:"size_lines"`
	ColorLines        int                         `json:"color_lines"`
	TotalMaterialCost decimal.Decimal             `json:"total_material_cost"`
	ByKind            map[models.MaterialKind]int `json:"by_kind"`
	Processes         []string                    `json:"processes"`
}

// BomStatistics summarises active lines. Material cost is the sum of line costs at
// the given size multiplier, without color surcharges.
func BomStatistics(lines []*models.BomLine, sizeMultiplier decimal.Decimal) BomStats {
	stats := BomStats{
		TotalMaterialCost: decimal.Zero,
		ByKind:            make(map[models.MaterialKind]int),
		Processes:         make([]string, 0),
	}

	seen := make(map[string]bool)

	for _, line := range lines {
		if !line.IsActive() {
			continue
		}

		stats.TotalLines++

		if line.IsCritical {
			stats.CriticalLines++
		}

		if line.AppliesToSize {
			stats.SizeLines++
		}

		if line.AppliesToColor {
			stats.ColorLines++
		}

		if line.ProcessID != "" && !seen[line.ProcessID] {
			seen[line.ProcessID] = true
			stats.Processes = append(stats.Processes, line.ProcessID)
		}

		if line.Material == nil {
			continue
		}

		stats.ByKind[line.Material.Kind]++

		resolved, err := ResolveBomLine(line, sizeMultiplier, "", nil, 1)
		if err == nil {
			stats.TotalMaterialCost = stats.TotalMaterialCost.Add(resolved.LineCost)
		}
	}

	sort.Strings(stats.Processes)

	return stats
}

// HasDyeMaterial reports whether any active line uses a dye material.
func HasDyeMaterial(lines []*models.BomLine) bool {
	for _, line := range lines {
		if line.IsActive() && line.Material != nil && line.Material.IsDye() {
			return true
		}
	}

	return false
}
