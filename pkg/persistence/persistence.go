// Package persistence provides the data storage abstraction for the costing catalog,
// process flows and variant calculations.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
)

type Persistence interface {
	CatalogRepository() CatalogRepository
	BomRepository() BomRepository
	FlowRepository() FlowRepository
	CalculationRepository() CalculationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CatalogRepository gives access to styles and the shared production catalog.
type CatalogRepository interface {
	GetStyle(ctx context.Context, id string) (*models.Style, error)
	ListStyles(ctx context.Context) ([]*models.Style, error)
	SaveStyle(ctx context.Context, style *models.Style) error

	GetColor(ctx context.Context, id string) (*models.Color, error)
	SaveColor(ctx context.Context, color *models.Color) error

	GetSize(ctx context.Context, id string) (*models.Size, error)
	SaveSize(ctx context.Context, size *models.Size) error

	GetMaterial(ctx context.Context, id string) (*models.Material, error)
	SaveMaterial(ctx context.Context, material *models.Material) error

	GetProcess(ctx context.Context, id string) (*models.Process, error)
	ListProcesses(ctx context.Context) ([]*models.Process, error)
	SaveProcess(ctx context.Context, process *models.Process) error

	// ColorCosts returns the dye surcharges registered for a color.
	ColorCosts(ctx context.Context, colorID string) ([]*models.MaterialColorCost, error)
	SaveColorCost(ctx context.Context, cost *models.MaterialColorCost) error
}

// BomRepository handles the bill of materials of a style.
type BomRepository interface {
	// ActiveLines returns the active lines of a style with Material and Process loaded.
	ActiveLines(ctx context.Context, styleID string) ([]*models.BomLine, error)
	// ReplaceLines deactivates the current lines of a style and stores the given ones.
	ReplaceLines(ctx context.Context, styleID string, lines []*models.BomLine) error
}

// NodePosition is an editor coordinate update for a single node.
type NodePosition struct {
	NodeID    string  `json:"node_id"    validate:"required"`
	PositionX float64 `json:"position_x" validate:"gte=0"`
	PositionY float64 `json:"position_y" validate:"gte=0"`
}

// FlowRepository handles process flows together with their nodes and edges.
type FlowRepository interface {
	// GetByID returns a flow with its nodes (processes loaded) and edges.
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	// ListByStyle returns the flows of a style ordered by version descending, without nodes and edges.
	ListByStyle(ctx context.Context, styleID string) ([]*models.Flow, error)
	// Current returns the current flow of a style with nodes and edges.
	Current(ctx context.Context, styleID string) (*models.Flow, error)
	// Create stores a flow and its graph, assigning the next version of its style.
	Create(ctx context.Context, flow *models.Flow) error
	SaveEdge(ctx context.Context, edge *models.FlowEdge) error
	UpdatePositions(ctx context.Context, flowID string, positions []NodePosition) error
	UpdateStatus(ctx context.Context, flowID string, status models.FlowStatus) error
	UpdateTotals(ctx context.Context, flowID string, cost, minutes decimal.Decimal) error
	// Promote marks a flow as current and demotes every other flow of its style.
	Promote(ctx context.Context, flowID string) error
	// Delete removes a flow. It fails with ErrSoleFlow when the flow is the only one of
	// its style, and promotes the most recent remaining flow when the deleted one was current.
	Delete(ctx context.Context, flowID string) error
}

// CalculationRecord carries a computed variant cost to be stored as a new version.
type CalculationRecord struct {
	CalculationID    string
	StyleID          string
	ColorID          string
	SizeID           string
	SKU              string
	FlowID           string
	MaterialCost     decimal.Decimal
	ProcessCost      decimal.Decimal
	TotalCost        decimal.Decimal
	TotalTimeMinutes decimal.Decimal
	Pieces           int
	CalculatedAt     time.Time
}

// CalculationRepository handles variants and their append-only calculation history.
type CalculationRepository interface {
	// Record atomically finds or creates the variant, demotes its current calculation,
	// stores the record as the next version and refreshes the variant's cached totals.
	Record(ctx context.Context, record *CalculationRecord) (*models.Variant, *models.VariantCalculation, error)
	GetByID(ctx context.Context, id string) (*models.VariantCalculation, error)
	// ListByVariant returns the history of a variant ordered by version descending.
	ListByVariant(ctx context.Context, variantID string) ([]*models.VariantCalculation, error)
	// CurrentByStyle returns the current calculation of every variant of a style.
	CurrentByStyle(ctx context.Context, styleID string) ([]*models.VariantCalculation, error)
	GetVariant(ctx context.Context, id string) (*models.Variant, error)
	FindVariant(ctx context.Context, styleID, colorID, sizeID string) (*models.Variant, error)
	ListVariantsByStyle(ctx context.Context, styleID string) ([]*models.Variant, error)
}
