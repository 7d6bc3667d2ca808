package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BomLine is one material requirement of a style.
type BomLine struct {
	ID             string          `json:"id"`
	StyleID        string          `json:"style_id"         validate:"required"`
	MaterialID     string          `json:"material_id"      validate:"required"`
	ProcessID      string          `json:"process_id,omitempty"`
	BaseQuantity   decimal.Decimal `json:"base_quantity"`
	AppliesToSize  bool            `json:"applies_to_size"`
	AppliesToColor bool            `json:"applies_to_color"`
	IsCritical     bool            `json:"is_critical"`
	Status         RecordStatus    `json:"status"`
	Material       *Material       `json:"material,omitempty"`
	Process        *Process        `json:"process,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsActive reports whether the line belongs to the style's active BOM.
func (l *BomLine) IsActive() bool {
	return l.Status != StatusInactive
}
