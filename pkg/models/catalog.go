// Package models defines the domain models for textile style costing.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level at or below which a critical material raises an alert.
var LowStockThreshold = decimal.NewFromInt(10)

// MinSizeMultiplier is the smallest quantity multiplier a size may carry.
var MinSizeMultiplier = decimal.RequireFromString("0.1")

var ErrInvalidSizeMultiplier = errors.New("invalid size quantity multiplier")

// MaterialKind classifies materials by their role in production.
type MaterialKind string

const (
	MaterialKindYarn      MaterialKind = "yarn"
	MaterialKindDye       MaterialKind = "dye"
	MaterialKindChemical  MaterialKind = "chemical"
	MaterialKindInk       MaterialKind = "ink"
	MaterialKindTrim      MaterialKind = "trim"
	MaterialKindPackaging MaterialKind = "packaging"
)

// RecordStatus is the soft lifecycle state shared by catalog records.
type RecordStatus string

const (
	StatusActive   RecordStatus = "active"
	StatusInactive RecordStatus = "inactive"
)

// StockStatus summarises the stock level of a material.
type StockStatus string

const (
	StockOut StockStatus = "out_of_stock"
	StockLow StockStatus = "low"
	StockOK  StockStatus = "ok"
)

// Material is a raw input consumed by a style's bill of materials.
type Material struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"        validate:"required"`
	Name       string          `json:"name"        validate:"required"`
	Category   string          `json:"category"`
	Unit       string          `json:"unit"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Stock      decimal.Decimal `json:"stock"`
	IsCritical bool            `json:"is_critical"`
	Kind       MaterialKind    `json:"kind"        validate:"required,oneof=yarn dye chemical ink trim packaging"`
	Status     RecordStatus    `json:"status"      validate:"required,oneof=active inactive"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IsDye reports whether the material can carry a color surcharge.
func (m *Material) IsDye() bool {
	return m.Kind == MaterialKindDye
}

// IsActive reports whether the material can be used in production.
func (m *Material) IsActive() bool {
	return m.Status != StatusInactive
}

func (m *Material) StockStatus() StockStatus {
	switch {
	case !m.Stock.IsPositive():
		return StockOut
	case m.Stock.LessThanOrEqual(LowStockThreshold):
		return StockLow
	default:
		return StockOK
	}
}

// MaterialColorCost is the extra per-unit cost of a dye material for a specific color.
type MaterialColorCost struct {
	MaterialID     string              `json:"material_id"`
	ColorID        string              `json:"color_id"`
	AdditionalCost decimal.NullDecimal `json:"additional_cost"`
}

// Surcharges indexes color surcharges by material and color.
type Surcharges map[string]map[string]decimal.Decimal

// NewSurcharges builds the lookup table, skipping rows without an amount.
func NewSurcharges(costs []*MaterialColorCost) Surcharges {
	s := make(Surcharges)

	for _, c := range costs {
		if c == nil || !c.AdditionalCost.Valid {
			continue
		}

		if s[c.MaterialID] == nil {
			s[c.MaterialID] = make(map[string]decimal.Decimal)
		}

		s[c.MaterialID][c.ColorID] = c.AdditionalCost.Decimal
	}

	return s
}

// Lookup returns the surcharge for a material and color, if one exists.
func (s Surcharges) Lookup(materialID, colorID string) (decimal.Decimal, bool) {
	byColor, ok := s[materialID]
	if !ok {
		return decimal.Zero, false
	}

	cost, ok := byColor[colorID]

	return cost, ok
}

// Process is a production operation that a flow node executes.
type Process struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"              validate:"required"`
	Name            string          `json:"name"              validate:"required"`
	Type            string          `json:"type"`
	BaseCost        decimal.Decimal `json:"base_cost"`
	BaseTimeMinutes decimal.Decimal `json:"base_time_minutes"`
	WastePercentage decimal.Decimal `json:"waste_percentage"`
	IsParallel      bool            `json:"is_parallel"`
	IsOptional      bool            `json:"is_optional"`
	RequiresColor   bool            `json:"requires_color"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// WasteFactor returns the merma multiplier (1 + waste/100), or one when there is no waste.
func (p *Process) WasteFactor() decimal.Decimal {
	if !p.WastePercentage.IsPositive() {
		return decimal.NewFromInt(1)
	}

	return decimal.NewFromInt(1).Add(p.WastePercentage.Div(decimal.NewFromInt(100)))
}

// Style is a garment design that owns a BOM and its process flows.
type Style struct {
	ID                string              `json:"id"`
	Code              string              `json:"code"                validate:"required"`
	Name              string              `json:"name"                validate:"required"`
	TargetCost        decimal.NullDecimal `json:"target_cost"`
	TargetTimeMinutes decimal.NullDecimal `json:"target_time_minutes"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type Color struct {
	ID      string `json:"id"`
	Name    string `json:"name"     validate:"required"`
	HexCode string `json:"hex_code"`
}

type Size struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"                validate:"required"`
	Name               string          `json:"name"`
	QuantityMultiplier decimal.NullDecimal `json:"quantity_multiplier"`
}

// Validate rejects a multiplier below MinSizeMultiplier. An absent multiplier is valid.
func (s *Size) Validate() error {
	if s.QuantityMultiplier.Valid && s.QuantityMultiplier.Decimal.LessThan(MinSizeMultiplier) {
		return fmt.Errorf("size %s: %w: %s is below %s", s.Code, ErrInvalidSizeMultiplier,
			s.QuantityMultiplier.Decimal, MinSizeMultiplier)
	}

	return nil
}

// Multiplier returns the size quantity multiplier, one when absent.
func (s *Size) Multiplier() decimal.Decimal {
	if !s.QuantityMultiplier.Valid {
		return decimal.NewFromInt(1)
	}

	return s.QuantityMultiplier.Decimal
}
