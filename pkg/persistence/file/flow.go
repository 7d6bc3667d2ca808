package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/shopspring/decimal"
)

// FlowRepository stores each flow with its nodes and edges in a single document.
type FlowRepository struct {
	store *store
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.load(id)
}

func (r *FlowRepository) ListByStyle(_ context.Context, styleID string) ([]*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	flows, err := r.styleFlows(styleID)
	if err != nil {
		return nil, err
	}

	for _, f := range flows {
		f.Nodes = nil
		f.Edges = nil
	}

	return flows, nil
}

func (r *FlowRepository) Current(_ context.Context, styleID string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	flows, err := r.styleFlows(styleID)
	if err != nil {
		return nil, err
	}

	for _, f := range flows {
		if f.IsCurrent {
			return r.load(f.ID)
		}
	}

	return nil, persistence.NewEntityError("Current", "style", styleID, persistence.ErrCurrentFlowNotFound)
}

func (r *FlowRepository) Create(_ context.Context, flow *models.Flow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	flows, err := r.styleFlows(flow.StyleID)
	if err != nil {
		return err
	}

	version := 0
	for _, f := range flows {
		version = max(version, f.Version)
	}

	now := time.Now().UTC()
	flow.Version = version + 1
	flow.CreatedAt = now
	flow.UpdatedAt = now

	for _, node := range flow.Nodes {
		node.FlowID = flow.ID
	}

	for _, edge := range flow.Edges {
		edge.FlowID = flow.ID
	}

	if flow.IsCurrent {
		err = r.demote(flows, now)
		if err != nil {
			return err
		}
	}

	return r.save(flow)
}

func (r *FlowRepository) SaveEdge(_ context.Context, edge *models.FlowEdge) error {
	return r.update(edge.FlowID, func(flow *models.Flow) error {
		for i, existing := range flow.Edges {
			if existing.ID == edge.ID {
				flow.Edges[i] = edge

				return nil
			}
		}

		flow.Edges = append(flow.Edges, edge)

		return nil
	})
}

func (r *FlowRepository) UpdatePositions(_ context.Context, flowID string, positions []persistence.NodePosition) error {
	return r.update(flowID, func(flow *models.Flow) error {
		nodes := make(map[string]*models.FlowNode, len(flow.Nodes))
		for _, n := range flow.Nodes {
			nodes[n.ID] = n
		}

		for _, p := range positions {
			node, ok := nodes[p.NodeID]
			if !ok {
				return persistence.NewEntityError("UpdatePositions", "node", p.NodeID, persistence.ErrNodeNotFound)
			}

			node.PositionX = p.PositionX
			node.PositionY = p.PositionY
		}

		return nil
	})
}

func (r *FlowRepository) UpdateStatus(_ context.Context, flowID string, status models.FlowStatus) error {
	return r.update(flowID, func(flow *models.Flow) error {
		flow.Status = status

		return nil
	})
}

func (r *FlowRepository) UpdateTotals(_ context.Context, flowID string, cost, minutes decimal.Decimal) error {
	return r.update(flowID, func(flow *models.Flow) error {
		flow.TotalCost = cost
		flow.TotalTimeMinutes = minutes

		return nil
	})
}

func (r *FlowRepository) Promote(_ context.Context, flowID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	flow, err := r.raw(flowID)
	if err != nil {
		return err
	}

	siblings, err := r.styleFlows(flow.StyleID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	err = r.demote(siblings, now)
	if err != nil {
		return err
	}

	flow.IsCurrent = true
	flow.UpdatedAt = now

	return r.save(flow)
}

func (r *FlowRepository) Delete(_ context.Context, flowID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	flow, err := r.raw(flowID)
	if err != nil {
		return err
	}

	siblings, err := r.styleFlows(flow.StyleID)
	if err != nil {
		return err
	}

	if len(siblings) <= 1 {
		return persistence.NewEntityError("Delete", "flow", flowID, persistence.ErrSoleFlow)
	}

	err = r.store.remove(flowsCollection, flowID)
	if err != nil {
		return err
	}

	if !flow.IsCurrent {
		return nil
	}

	// siblings are sorted by version descending
	for _, next := range siblings {
		if next.ID == flowID {
			continue
		}

		next.IsCurrent = true
		next.UpdatedAt = time.Now().UTC()

		return r.save(next)
	}

	return nil
}

// update applies fn to a stored flow under the write lock.
func (r *FlowRepository) update(flowID string, fn func(*models.Flow) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	flow, err := r.raw(flowID)
	if err != nil {
		return err
	}

	err = fn(flow)
	if err != nil {
		return err
	}

	flow.UpdatedAt = time.Now().UTC()

	return r.save(flow)
}

func (r *FlowRepository) demote(flows []*models.Flow, now time.Time) error {
	for _, f := range flows {
		if !f.IsCurrent {
			continue
		}

		f.IsCurrent = false
		f.UpdatedAt = now

		err := r.save(f)
		if err != nil {
			return err
		}
	}

	return nil
}

// raw reads a flow document without loading processes.
func (r *FlowRepository) raw(id string) (*models.Flow, error) {
	return getDocument[models.Flow](r.store, flowsCollection, id, persistence.ErrFlowNotFound)
}

func (r *FlowRepository) load(id string) (*models.Flow, error) {
	flow, err := r.raw(id)
	if err != nil {
		return nil, err
	}

	processes, err := processIndex(r.store)
	if err != nil {
		return nil, err
	}

	for _, node := range flow.Nodes {
		node.Process = processes[node.ProcessID]
	}

	sort.SliceStable(flow.Nodes, func(i, j int) bool {
		return flow.Nodes[i].SequenceOrder < flow.Nodes[j].SequenceOrder
	})

	if flow.Nodes == nil {
		flow.Nodes = []*models.FlowNode{}
	}

	if flow.Edges == nil {
		flow.Edges = []*models.FlowEdge{}
	}

	return flow, nil
}

func (r *FlowRepository) save(flow *models.Flow) error {
	stored := *flow
	stored.Nodes = make([]*models.FlowNode, 0, len(flow.Nodes))

	for _, n := range flow.Nodes {
		node := *n
		node.Process = nil
		stored.Nodes = append(stored.Nodes, &node)
	}

	return r.store.write(flowsCollection, flow.ID, &stored)
}

// styleFlows returns the flows of a style sorted by version descending.
func (r *FlowRepository) styleFlows(styleID string) ([]*models.Flow, error) {
	flows, err := readAll(r.store, flowsCollection, func(f *models.Flow) bool {
		return f.StyleID == styleID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].Version > flows[j].Version })

	return flows, nil
}
