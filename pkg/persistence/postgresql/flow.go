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
	"github.com/shopspring/decimal"
)

// FlowRepository handles flow database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

const flowColumns = `
	id
  , style_id
  , name
  , version
  , is_current
  , status
  , total_cost
  , total_time_minutes
  , created_at
  , updated_at`

func scanFlow(row interface{ Scan(...any) error }) (*models.Flow, error) {
	var flow models.Flow

	err := row.Scan(
		&flow.ID,
		&flow.StyleID,
		&flow.Name,
		&flow.Version,
		&flow.IsCurrent,
		&flow.Status,
		&flow.TotalCost,
		&flow.TotalTimeMinutes,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &flow, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := scanFlow(r.db.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr("GetFlow", "flow", id, persistence.ErrFlowNotFound, err)
	}

	return flow, r.loadGraph(ctx, flow)
}

func (r *FlowRepository) ListByStyle(ctx context.Context, styleID string) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE style_id = $1 ORDER BY version DESC`, styleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) Current(ctx context.Context, styleID string) (*models.Flow, error) {
	flow, err := scanFlow(r.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE style_id = $1 AND is_current`, styleID))
	if err != nil {
		return nil, notFoundOr("Current", "style", styleID, persistence.ErrCurrentFlowNotFound, err)
	}

	return flow, r.loadGraph(ctx, flow)
}

func (r *FlowRepository) loadGraph(ctx context.Context, flow *models.Flow) error {
	nodesQuery := `
		SELECT
			n.id
		  , n.flow_id
		  , n.process_id
		  , n.sequence_order
		  , n.position_x
		  , n.position_y
		  , n.width
		  , n.height
		  , n.custom_cost
		  , n.custom_time_minutes
		  , n.is_start
		  , n.is_end
		  , n.notes
		  ,` + processColumns + `
		FROM flow_nodes n
		JOIN processes p ON p.id = n.process_id
		WHERE n.flow_id = $1
		ORDER BY n.sequence_order, n.id
	`

	rows, err := r.db.QueryContext(ctx, nodesQuery, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to query flow nodes: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flow.Nodes = make([]*models.FlowNode, 0)

	for rows.Next() {
		var (
			node    models.FlowNode
			process models.Process
		)

		targets := []any{
			&node.ID, &node.FlowID, &node.ProcessID, &node.SequenceOrder, &node.PositionX, &node.PositionY,
			&node.Width, &node.Height, &node.CustomCost, &node.CustomTimeMinutes, &node.IsStart, &node.IsEnd,
			&node.Notes,
		}

		err := rows.Scan(append(targets, processTargets(&process)...)...)
		if err != nil {
			return fmt.Errorf("failed to scan flow node: %w", err)
		}

		node.Process = &process
		flow.Nodes = append(flow.Nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("failed to iterate flow nodes: %w", err)
	}

	edges, err := r.edges(ctx, r.db, flow.ID)
	if err != nil {
		return err
	}

	flow.Edges = edges

	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *FlowRepository) edges(ctx context.Context, q queryer, flowID string) ([]*models.FlowEdge, error) {
	query := `
		SELECT
			id
		  , flow_id
		  , origin_node_id
		  , destination_node_id
		  , type
		  , condition
		  , label
		  , line_color
		  , priority
		FROM flow_edges
		WHERE flow_id = $1
		ORDER BY priority, id
	`

	rows, err := q.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow edges: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	edges := make([]*models.FlowEdge, 0)

	for rows.Next() {
		var edge models.FlowEdge

		err := rows.Scan(&edge.ID, &edge.FlowID, &edge.OriginNodeID, &edge.DestinationNodeID, &edge.Type,
			&edge.Condition, &edge.Label, &edge.LineColor, &edge.Priority)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow edge: %w", err)
		}

		edges = append(edges, &edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate flow edges: %w", err)
	}

	return edges, nil
}

// lockStyle serialises flow writers of a style for the rest of the transaction.
func lockStyle(ctx context.Context, tx *sql.Tx, styleID string) error {
	var id string

	err := tx.QueryRowContext(ctx, `SELECT id FROM styles WHERE id = $1 FOR UPDATE`, styleID).Scan(&id)
	if err != nil {
		return notFoundOr("LockStyle", "style", styleID, persistence.ErrStyleNotFound, err)
	}

	return nil
}

// lockFlow locks the style owning a flow and returns the flow row.
func lockFlow(ctx context.Context, tx *sql.Tx, flowID string) (*models.Flow, error) {
	var styleID string

	err := tx.QueryRowContext(ctx, `SELECT style_id FROM flows WHERE id = $1`, flowID).Scan(&styleID)
	if err != nil {
		return nil, notFoundOr("LockFlow", "flow", flowID, persistence.ErrFlowNotFound, err)
	}

	err = lockStyle(ctx, tx, styleID)
	if err != nil {
		return nil, err
	}

	flow, err := scanFlow(tx.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1 FOR UPDATE`, flowID))
	if err != nil {
		return nil, notFoundOr("LockFlow", "flow", flowID, persistence.ErrFlowNotFound, err)
	}

	return flow, nil
}

func (r *FlowRepository) Create(ctx context.Context, flow *models.Flow) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := lockStyle(ctx, tx, flow.StyleID)
		if err != nil {
			return err
		}

		var version int

		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM flows WHERE style_id = $1`, flow.StyleID).Scan(&version)
		if err != nil {
			return fmt.Errorf("failed to query flow version: %w", err)
		}

		now := time.Now().UTC()
		flow.Version = version + 1
		flow.CreatedAt = now
		flow.UpdatedAt = now

		if flow.IsCurrent {
			_, err = tx.ExecContext(ctx,
				`UPDATE flows SET is_current = false, updated_at = $2 WHERE style_id = $1 AND is_current`,
				flow.StyleID, now)
			if err != nil {
				return fmt.Errorf("failed to demote flows: %w", err)
			}
		}

		flowQuery := `
			INSERT INTO flows (id, style_id, name, version, is_current, status, total_cost, total_time_minutes,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		_, err = tx.ExecContext(ctx, flowQuery, flow.ID, flow.StyleID, flow.Name, flow.Version, flow.IsCurrent,
			flow.Status, flow.TotalCost, flow.TotalTimeMinutes, flow.CreatedAt, flow.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return persistence.NewEntityError("Create", "flow", flow.ID, persistence.ErrVersionConflict)
			}

			return fmt.Errorf("failed to insert flow: %w", err)
		}

		nodeQuery := `
			INSERT INTO flow_nodes (id, flow_id, process_id, sequence_order, position_x, position_y, width, height,
				custom_cost, custom_time_minutes, is_start, is_end, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`

		for _, node := range flow.Nodes {
			node.FlowID = flow.ID

			_, err = tx.ExecContext(ctx, nodeQuery, node.ID, flow.ID, node.ProcessID, node.SequenceOrder,
				node.PositionX, node.PositionY, node.Width, node.Height, node.CustomCost, node.CustomTimeMinutes,
				node.IsStart, node.IsEnd, node.Notes)
			if err != nil {
				return fmt.Errorf("failed to insert flow node %s: %w", node.ID, err)
			}
		}

		for _, edge := range flow.Edges {
			edge.FlowID = flow.ID

			err = insertEdge(ctx, tx, edge)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func insertEdge(ctx context.Context, tx *sql.Tx, edge *models.FlowEdge) error {
	query := `
		INSERT INTO flow_edges (id, flow_id, origin_node_id, destination_node_id, type, condition, label,
			line_color, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			origin_node_id = EXCLUDED.origin_node_id
		  , destination_node_id = EXCLUDED.destination_node_id
		  , type = EXCLUDED.type
		  , condition = EXCLUDED.condition
		  , label = EXCLUDED.label
		  , line_color = EXCLUDED.line_color
		  , priority = EXCLUDED.priority
	`

	_, err := tx.ExecContext(ctx, query, edge.ID, edge.FlowID, edge.OriginNodeID, edge.DestinationNodeID,
		edge.Type, edge.Condition, edge.Label, edge.LineColor, edge.Priority)
	if err != nil {
		return fmt.Errorf("failed to save flow edge %s: %w", edge.ID, err)
	}

	return nil
}

func (r *FlowRepository) SaveEdge(ctx context.Context, edge *models.FlowEdge) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := lockFlow(ctx, tx, edge.FlowID)
		if err != nil {
			return err
		}

		err = insertEdge(ctx, tx, edge)
		if err != nil {
			return err
		}

		return touchFlow(ctx, tx, edge.FlowID)
	})
}

func (r *FlowRepository) UpdatePositions(ctx context.Context, flowID string, positions []persistence.NodePosition) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, p := range positions {
			result, err := tx.ExecContext(ctx,
				`UPDATE flow_nodes SET position_x = $3, position_y = $4 WHERE flow_id = $1 AND id = $2`,
				flowID, p.NodeID, p.PositionX, p.PositionY)
			if err != nil {
				return fmt.Errorf("failed to update node %s position: %w", p.NodeID, err)
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}

			if affected == 0 {
				return persistence.NewEntityError("UpdatePositions", "node", p.NodeID, persistence.ErrNodeNotFound)
			}
		}

		return touchFlow(ctx, tx, flowID)
	})
}

func (r *FlowRepository) UpdateStatus(ctx context.Context, flowID string, status models.FlowStatus) error {
	return r.exec(ctx, "UpdateStatus", flowID,
		`UPDATE flows SET status = $2, updated_at = $3 WHERE id = $1`, flowID, status, time.Now().UTC())
}

func (r *FlowRepository) UpdateTotals(ctx context.Context, flowID string, cost, minutes decimal.Decimal) error {
	return r.exec(ctx, "UpdateTotals", flowID,
		`UPDATE flows SET total_cost = $2, total_time_minutes = $3, updated_at = $4 WHERE id = $1`,
		flowID, cost, minutes, time.Now().UTC())
}

func (r *FlowRepository) Promote(ctx context.Context, flowID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		flow, err := lockFlow(ctx, tx, flowID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`UPDATE flows SET is_current = false, updated_at = $2 WHERE style_id = $1 AND is_current`,
			flow.StyleID, now)
		if err != nil {
			return fmt.Errorf("failed to demote flows: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE flows SET is_current = true, updated_at = $2 WHERE id = $1`, flowID, now)
		if err != nil {
			return fmt.Errorf("failed to promote flow: %w", err)
		}

		return nil
	})
}

func (r *FlowRepository) Delete(ctx context.Context, flowID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		flow, err := lockFlow(ctx, tx, flowID)
		if err != nil {
			return err
		}

		var count int

		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows WHERE style_id = $1`, flow.StyleID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count flows: %w", err)
		}

		if count <= 1 {
			return persistence.NewEntityError("Delete", "flow", flowID, persistence.ErrSoleFlow)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, flowID)
		if err != nil {
			return fmt.Errorf("failed to delete flow: %w", err)
		}

		if !flow.IsCurrent {
			return nil
		}

		promoteQuery := `
			UPDATE flows SET is_current = true, updated_at = $2
			WHERE id = (SELECT id FROM flows WHERE style_id = $1 ORDER BY version DESC LIMIT 1)
		`

		_, err = tx.ExecContext(ctx, promoteQuery, flow.StyleID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to promote replacement flow: %w", err)
		}

		return nil
	})
}

func (r *FlowRepository) exec(ctx context.Context, op, flowID, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s flow %s: %w", op, flowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, "flow", flowID, persistence.ErrFlowNotFound)
	}

	return nil
}

func touchFlow(ctx context.Context, tx *sql.Tx, flowID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE flows SET updated_at = $2 WHERE id = $1`, flowID, time.Now().UTC())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to touch flow %s: %w", flowID, err)
	}

	return nil
}
