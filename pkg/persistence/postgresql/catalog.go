package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
)

// CatalogRepository handles catalog database operations.
type CatalogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sql.DB, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

const styleColumns = `
	id
  , code
  , name
  , target_cost
  , target_time_minutes
  , created_at
  , updated_at`

func scanStyle(row interface{ Scan(...any) error }) (*models.Style, error) {
	var style models.Style

	err := row.Scan(
		&style.ID,
		&style.Code,
		&style.Name,
		&style.TargetCost,
		&style.TargetTimeMinutes,
		&style.CreatedAt,
		&style.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &style, nil
}

func (r *CatalogRepository) GetStyle(ctx context.Context, id string) (*models.Style, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+styleColumns+` FROM styles WHERE id = $1`, id)

	style, err := scanStyle(row)
	if err != nil {
		return nil, notFoundOr("GetStyle", "style", id, persistence.ErrStyleNotFound, err)
	}

	return style, nil
}

func (r *CatalogRepository) ListStyles(ctx context.Context) ([]*models.Style, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+styleColumns+` FROM styles ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query styles: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	styles := make([]*models.Style, 0)

	for rows.Next() {
		style, err := scanStyle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan style: %w", err)
		}

		styles = append(styles, style)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate styles: %w", err)
	}

	return styles, nil
}

func (r *CatalogRepository) SaveStyle(ctx context.Context, style *models.Style) error {
	now := time.Now().UTC()
	if style.CreatedAt.IsZero() {
		style.CreatedAt = now
	}

	style.UpdatedAt = now

	query := `
		INSERT INTO styles (id, code, name, target_cost, target_time_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code
		  , name = EXCLUDED.name
		  , target_cost = EXCLUDED.target_cost
		  , target_time_minutes = EXCLUDED.target_time_minutes
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		style.ID, style.Code, style.Name, style.TargetCost, style.TargetTimeMinutes, style.CreatedAt, style.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save style %s: %w", style.ID, err)
	}

	return nil
}

func (r *CatalogRepository) GetColor(ctx context.Context, id string) (*models.Color, error) {
	var (
		color models.Color
		hex   sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `SELECT id, name, hex_code FROM colors WHERE id = $1`, id).
		Scan(&color.ID, &color.Name, &hex)
	if err != nil {
		return nil, notFoundOr("GetColor", "color", id, persistence.ErrColorNotFound, err)
	}

	color.HexCode = hex.String

	return &color, nil
}

func (r *CatalogRepository) SaveColor(ctx context.Context, color *models.Color) error {
	query := `
		INSERT INTO colors (id, name, hex_code) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, hex_code = EXCLUDED.hex_code
	`

	_, err := r.db.ExecContext(ctx, query, color.ID, color.Name, nullString(color.HexCode))
	if err != nil {
		return fmt.Errorf("failed to save color %s: %w", color.ID, err)
	}

	return nil
}

func (r *CatalogRepository) GetSize(ctx context.Context, id string) (*models.Size, error) {
	var size models.Size

	err := r.db.QueryRowContext(ctx, `SELECT id, code, name, quantity_multiplier FROM sizes WHERE id = $1`, id).
		Scan(&size.ID, &size.Code, &size.Name, &size.QuantityMultiplier)
	if err != nil {
		return nil, notFoundOr("GetSize", "size", id, persistence.ErrSizeNotFound, err)
	}

	return &size, nil
}

func (r *CatalogRepository) SaveSize(ctx context.Context, size *models.Size) error {
	query := `
		INSERT INTO sizes (id, code, name, quantity_multiplier) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code
		  , name = EXCLUDED.name
		  , quantity_multiplier = EXCLUDED.quantity_multiplier
	`

	err := size.Validate()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, size.ID, size.Code, size.Name, size.Multiplier())
	if err != nil {
		return fmt.Errorf("failed to save size %s: %w", size.ID, err)
	}

	return nil
}

const materialColumns = `
	m.id
  , m.code
  , m.name
  , m.category
  , m.unit
  , m.unit_cost
  , m.stock
  , m.is_critical
  , m.kind
  , m.status
  , m.created_at
  , m.updated_at`

func materialTargets(m *models.Material) []any {
	return []any{
		&m.ID, &m.Code, &m.Name, &m.Category, &m.Unit, &m.UnitCost, &m.Stock,
		&m.IsCritical, &m.Kind, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	}
}

func (r *CatalogRepository) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	var material models.Material

	err := r.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials m WHERE m.id = $1`, id).
		Scan(materialTargets(&material)...)
	if err != nil {
		return nil, notFoundOr("GetMaterial", "material", id, persistence.ErrMaterialNotFound, err)
	}

	return &material, nil
}

func (r *CatalogRepository) SaveMaterial(ctx context.Context, material *models.Material) error {
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}

	material.UpdatedAt = now

	if material.Status == "" {
		material.Status = models.StatusActive
	}

	query := `
		INSERT INTO materials (id, code, name, category, unit, unit_cost, stock, is_critical, kind, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code
		  , name = EXCLUDED.name
		  , category = EXCLUDED.category
		  , unit = EXCLUDED.unit
		  , unit_cost = EXCLUDED.unit_cost
		  , stock = EXCLUDED.stock
		  , is_critical = EXCLUDED.is_critical
		  , kind = EXCLUDED.kind
		  , status = EXCLUDED.status
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		material.ID, material.Code, material.Name, material.Category, material.Unit, material.UnitCost,
		material.Stock, material.IsCritical, material.Kind, material.Status, material.CreatedAt, material.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save material %s: %w", material.ID, err)
	}

	return nil
}

const processColumns = `
	p.id
  , p.code
  , p.name
  , p.type
  , p.base_cost
  , p.base_time_minutes
  , p.waste_percentage
  , p.is_parallel
  , p.is_optional
  , p.requires_color
  , p.created_at
  , p.updated_at`

func processTargets(p *models.Process) []any {
	return []any{
		&p.ID, &p.Code, &p.Name, &p.Type, &p.BaseCost, &p.BaseTimeMinutes, &p.WastePercentage,
		&p.IsParallel, &p.IsOptional, &p.RequiresColor, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (r *CatalogRepository) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	var process models.Process

	err := r.db.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes p WHERE p.id = $1`, id).
		Scan(processTargets(&process)...)
	if err != nil {
		return nil, notFoundOr("GetProcess", "process", id, persistence.ErrProcessNotFound, err)
	}

	return &process, nil
}

func (r *CatalogRepository) ListProcesses(ctx context.Context) ([]*models.Process, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+processColumns+` FROM processes p ORDER BY p.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	processes := make([]*models.Process, 0)

	for rows.Next() {
		var process models.Process

		err := rows.Scan(processTargets(&process)...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}

		processes = append(processes, &process)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate processes: %w", err)
	}

	return processes, nil
}

func (r *CatalogRepository) SaveProcess(ctx context.Context, process *models.Process) error {
	now := time.Now().UTC()
	if process.CreatedAt.IsZero() {
		process.CreatedAt = now
	}

	process.UpdatedAt = now

	query := `
		INSERT INTO processes (id, code, name, type, base_cost, base_time_minutes, waste_percentage,
			is_parallel, is_optional, requires_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code
		  , name = EXCLUDED.name
		  , type = EXCLUDED.type
		  , base_cost = EXCLUDED.base_cost
		  , base_time_minutes = EXCLUDED.base_time_minutes
		  , waste_percentage = EXCLUDED.waste_percentage
		  , is_parallel = EXCLUDED.is_parallel
		  , is_optional = EXCLUDED.is_optional
		  , requires_color = EXCLUDED.requires_color
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		process.ID, process.Code, process.Name, process.Type, process.BaseCost, process.BaseTimeMinutes,
		process.WastePercentage, process.IsParallel, process.IsOptional, process.RequiresColor,
		process.CreatedAt, process.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save process %s: %w", process.ID, err)
	}

	return nil
}

func (r *CatalogRepository) ColorCosts(ctx context.Context, colorID string) ([]*models.MaterialColorCost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT material_id, color_id, additional_cost FROM material_color_costs WHERE color_id = $1`, colorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query color costs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	costs := make([]*models.MaterialColorCost, 0)

	for rows.Next() {
		var cost models.MaterialColorCost

		err := rows.Scan(&cost.MaterialID, &cost.ColorID, &cost.AdditionalCost)
		if err != nil {
			return nil, fmt.Errorf("failed to scan color cost: %w", err)
		}

		costs = append(costs, &cost)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate color costs: %w", err)
	}

	return costs, nil
}

func (r *CatalogRepository) SaveColorCost(ctx context.Context, cost *models.MaterialColorCost) error {
	query := `
		INSERT INTO material_color_costs (material_id, color_id, additional_cost) VALUES ($1, $2, $3)
		ON CONFLICT (material_id, color_id) DO UPDATE SET additional_cost = EXCLUDED.additional_cost
	`

	_, err := r.db.ExecContext(ctx, query, cost.MaterialID, cost.ColorID, cost.AdditionalCost)
	if err != nil {
		return fmt.Errorf("failed to save color cost %s/%s: %w", cost.MaterialID, cost.ColorID, err)
	}

	return nil
}

// notFoundOr maps sql.ErrNoRows to notFound and wraps any other error.
func notFoundOr(op, entity, id string, notFound, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.NewEntityError(op, entity, id, notFound)
	}

	return fmt.Errorf("failed to %s %s: %w", op, id, err)
}
