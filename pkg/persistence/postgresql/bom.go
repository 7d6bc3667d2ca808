package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/costura/pkg/models"
)

// BomRepository handles bill of materials database operations.
type BomRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBomRepository creates a new BOM repository.
func NewBomRepository(db *sql.DB, logger *slog.Logger) *BomRepository {
	return &BomRepository{db: db, logger: logger}
}

func (r *BomRepository) ActiveLines(ctx context.Context, styleID string) ([]*models.BomLine, error) {
	query := `
		SELECT
			b.id
		  , b.style_id
		  , b.material_id
		  , b.process_id
		  , b.base_quantity
		  , b.applies_to_size
		  , b.applies_to_color
		  , b.is_critical
		  , b.status
		  , b.created_at
		  , b.updated_at
		  ,` + materialColumns + `
		FROM bom_lines b
		JOIN materials m ON m.id = b.material_id
		WHERE b.style_id = $1 AND b.status = 'active'
		ORDER BY b.created_at, b.id
	`

	rows, err := r.db.QueryContext(ctx, query, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bom lines: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	lines := make([]*models.BomLine, 0)
	processIDs := make(map[string]bool)

	for rows.Next() {
		var (
			line      models.BomLine
			material  models.Material
			processID sql.NullString
		)

		targets := []any{
			&line.ID, &line.StyleID, &line.MaterialID, &processID, &line.BaseQuantity,
			&line.AppliesToSize, &line.AppliesToColor, &line.IsCritical, &line.Status,
			&line.CreatedAt, &line.UpdatedAt,
		}

		err := rows.Scan(append(targets, materialTargets(&material)...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bom line: %w", err)
		}

		line.ProcessID = processID.String
		line.Material = &material

		if line.ProcessID != "" {
			processIDs[line.ProcessID] = true
		}

		lines = append(lines, &line)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate bom lines: %w", err)
	}

	if len(processIDs) == 0 {
		return lines, nil
	}

	processes, err := r.processes(ctx)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if line.ProcessID != "" {
			line.Process = processes[line.ProcessID]
		}
	}

	return lines, nil
}

func (r *BomRepository) processes(ctx context.Context) (map[string]*models.Process, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+processColumns+` FROM processes p`)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	processes := make(map[string]*models.Process)

	for rows.Next() {
		var p models.Process

		err := rows.Scan(processTargets(&p)...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}

		processes[p.ID] = &p
	}

	return processes, rows.Err()
}

func (r *BomRepository) ReplaceLines(ctx context.Context, styleID string, lines []*models.BomLine) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		_, err := tx.ExecContext(ctx,
			`UPDATE bom_lines SET status = 'inactive', updated_at = $2 WHERE style_id = $1 AND status = 'active'`,
			styleID, now)
		if err != nil {
			return fmt.Errorf("failed to deactivate bom lines: %w", err)
		}

		query := `
			INSERT INTO bom_lines (id, style_id, material_id, process_id, base_quantity,
				applies_to_size, applies_to_color, is_critical, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', $9, $9)
		`

		for i, line := range lines {
			line.StyleID = styleID
			line.Status = models.StatusActive
			line.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			line.UpdatedAt = line.CreatedAt

			_, err = tx.ExecContext(ctx, query,
				line.ID, styleID, line.MaterialID, nullString(line.ProcessID), line.BaseQuantity,
				line.AppliesToSize, line.AppliesToColor, line.IsCritical, line.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert bom line %s: %w", line.ID, err)
			}
		}

		return nil
	})
}
