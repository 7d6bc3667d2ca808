package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/google/uuid"
)

// CalculationRepository handles variant and calculation database operations.
type CalculationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCalculationRepository creates a new calculation repository.
func NewCalculationRepository(db *sql.DB, logger *slog.Logger) *CalculationRepository {
	return &CalculationRepository{db: db, logger: logger}
}

const variantColumns = `
	id
  , style_id
  , color_id
  , size_id
  , sku
  , cost
  , time_minutes
  , created_at
  , updated_at`

const calculationColumns = `
	id
  , variant_id
  , flow_id
  , material_cost
  , process_cost
  , total_cost
  , total_time_minutes
  , pieces
  , version
  , is_current
  , calculated_at`

func scanVariant(row interface{ Scan(...any) error }) (*models.Variant, error) {
	var v models.Variant

	err := row.Scan(&v.ID, &v.StyleID, &v.ColorID, &v.SizeID, &v.SKU, &v.Cost, &v.TimeMinutes,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func scanCalculation(row interface{ Scan(...any) error }) (*models.VariantCalculation, error) {
	var c models.VariantCalculation

	err := row.Scan(&c.ID, &c.VariantID, &c.FlowID, &c.MaterialCost, &c.ProcessCost, &c.TotalCost,
		&c.TotalTimeMinutes, &c.Pieces, &c.Version, &c.IsCurrent, &c.CalculatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *CalculationRepository) Record(ctx context.Context, record *persistence.CalculationRecord) (*models.Variant, *models.VariantCalculation, error) {
	var (
		variant     *models.Variant
		calculation *models.VariantCalculation
	)

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		insertVariant := `
			INSERT INTO variants (id, style_id, color_id, size_id, sku, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (style_id, color_id, size_id) DO NOTHING
		`

		_, err := tx.ExecContext(ctx, insertVariant, uuid.NewString(), record.StyleID, record.ColorID,
			record.SizeID, record.SKU, now)
		if err != nil {
			return fmt.Errorf("failed to insert variant: %w", err)
		}

		variant, err = scanVariant(tx.QueryRowContext(ctx,
			`SELECT `+variantColumns+` FROM variants WHERE style_id = $1 AND color_id = $2 AND size_id = $3 FOR UPDATE`,
			record.StyleID, record.ColorID, record.SizeID))
		if err != nil {
			return fmt.Errorf("failed to lock variant: %w", err)
		}

		var version int

		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM variant_calculations WHERE variant_id = $1`, variant.ID).Scan(&version)
		if err != nil {
			return fmt.Errorf("failed to query calculation version: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE variant_calculations SET is_current = false WHERE variant_id = $1 AND is_current`, variant.ID)
		if err != nil {
			return fmt.Errorf("failed to demote calculations: %w", err)
		}

		calculatedAt := record.CalculatedAt
		if calculatedAt.IsZero() {
			calculatedAt = now
		}

		calculation = &models.VariantCalculation{
			ID:               record.CalculationID,
			VariantID:        variant.ID,
			FlowID:           record.FlowID,
			MaterialCost:     record.MaterialCost,
			ProcessCost:      record.ProcessCost,
			TotalCost:        record.TotalCost,
			TotalTimeMinutes: record.TotalTimeMinutes,
			Pieces:           record.Pieces,
			Version:          version + 1,
			IsCurrent:        true,
			CalculatedAt:     calculatedAt,
		}

		insertCalculation := `
			INSERT INTO variant_calculations (id, variant_id, flow_id, material_cost, process_cost, total_cost,
				total_time_minutes, pieces, version, is_current, calculated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		_, err = tx.ExecContext(ctx, insertCalculation, calculation.ID, calculation.VariantID, calculation.FlowID,
			calculation.MaterialCost, calculation.ProcessCost, calculation.TotalCost, calculation.TotalTimeMinutes,
			calculation.Pieces, calculation.Version, calculation.IsCurrent, calculation.CalculatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return persistence.NewEntityError("Record", "variant", variant.ID, persistence.ErrVersionConflict)
			}

			return fmt.Errorf("failed to insert calculation: %w", err)
		}

		variant.Cost = record.TotalCost
		variant.TimeMinutes = record.TotalTimeMinutes
		variant.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`UPDATE variants SET cost = $2, time_minutes = $3, updated_at = $4 WHERE id = $1`,
			variant.ID, variant.Cost, variant.TimeMinutes, variant.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update variant totals: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return variant, calculation, nil
}

func (r *CalculationRepository) GetByID(ctx context.Context, id string) (*models.VariantCalculation, error) {
	calculation, err := scanCalculation(r.db.QueryRowContext(ctx,
		`SELECT `+calculationColumns+` FROM variant_calculations WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("GetCalculation", "calculation", id, persistence.ErrCalculationNotFound, err)
	}

	return calculation, nil
}

func (r *CalculationRepository) ListByVariant(ctx context.Context, variantID string) ([]*models.VariantCalculation, error) {
	return r.calculations(ctx,
		`SELECT `+calculationColumns+` FROM variant_calculations WHERE variant_id = $1 ORDER BY version DESC`,
		variantID)
}

func (r *CalculationRepository) CurrentByStyle(ctx context.Context, styleID string) ([]*models.VariantCalculation, error) {
	query := `
		SELECT
			c.id
		  , c.variant_id
		  , c.flow_id
		  , c.material_cost
		  , c.process_cost
		  , c.total_cost
		  , c.total_time_minutes
		  , c.pieces
		  , c.version
		  , c.is_current
		  , c.calculated_at
		FROM variant_calculations c
		JOIN variants v ON v.id = c.variant_id
		WHERE v.style_id = $1 AND c.is_current
		ORDER BY c.calculated_at
	`

	return r.calculations(ctx, query, styleID)
}

func (r *CalculationRepository) calculations(ctx context.Context, query string, args ...any) ([]*models.VariantCalculation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	calculations := make([]*models.VariantCalculation, 0)

	for rows.Next() {
		calculation, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation: %w", err)
		}

		calculations = append(calculations, calculation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate calculations: %w", err)
	}

	return calculations, nil
}

func (r *CalculationRepository) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	variant, err := scanVariant(r.db.QueryRowContext(ctx, `SELECT `+variantColumns+` FROM variants WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("GetVariant", "variant", id, persistence.ErrVariantNotFound, err)
	}

	return variant, nil
}

func (r *CalculationRepository) FindVariant(ctx context.Context, styleID, colorID, sizeID string) (*models.Variant, error) {
	variant, err := scanVariant(r.db.QueryRowContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE style_id = $1 AND color_id = $2 AND size_id = $3`,
		styleID, colorID, sizeID))
	if err != nil {
		return nil, notFoundOr("FindVariant", "style", styleID, persistence.ErrVariantNotFound, err)
	}

	return variant, nil
}

func (r *CalculationRepository) ListVariantsByStyle(ctx context.Context, styleID string) ([]*models.Variant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+variantColumns+` FROM variants WHERE style_id = $1 ORDER BY sku`, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	variants := make([]*models.Variant, 0)

	for rows.Next() {
		variant, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}

		variants = append(variants, variant)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate variants: %w", err)
	}

	return variants, nil
}
