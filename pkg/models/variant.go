package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Variant is a sellable (style, color, size) combination.
type Variant struct {
	ID          string          `json:"id"`
	StyleID     string          `json:"style_id"`
	ColorID     string          `json:"color_id"`
	SizeID      string          `json:"size_id"`
	SKU         string          `json:"sku"`
	Cost        decimal.Decimal `json:"cost"`
	TimeMinutes decimal.Decimal `json:"time_minutes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// VariantCalculation is an immutable costing snapshot of a variant.
type VariantCalculation struct {
	ID               string          `json:"id"`
	VariantID        string          `json:"variant_id"`
	FlowID           string          `json:"flow_id"`
	MaterialCost     decimal.Decimal `json:"material_cost"`
	ProcessCost      decimal.Decimal `json:"process_cost"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalTimeMinutes decimal.Decimal `json:"total_time_minutes"`
	Pieces           int             `json:"pieces"`
	Version          int             `json:"version"`
	IsCurrent        bool            `json:"is_current"`
	CalculatedAt     time.Time       `json:"calculated_at"`
}

func (c *VariantCalculation) MaterialCostPercentage() decimal.Decimal {
	return Percentage(c.MaterialCost, c.TotalCost)
}

func (c *VariantCalculation) ProcessCostPercentage() decimal.Decimal {
	return Percentage(c.ProcessCost, c.TotalCost)
}

// Percentage returns part/total*100 rounded to two places, or zero when total is zero.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}

	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}
