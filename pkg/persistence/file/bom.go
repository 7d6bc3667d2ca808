package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/costura/pkg/models"
)

// BomRepository handles BOM line documents.
type BomRepository struct {
	store *store
}

func (r *BomRepository) ActiveLines(_ context.Context, styleID string) ([]*models.BomLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	lines, err := readAll(r.store, bomLinesCollection, func(l *models.BomLine) bool {
		return l.StyleID == styleID && l.IsActive()
	})
	if err != nil {
		return nil, err
	}

	processes, err := processIndex(r.store)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		var material models.Material

		found, err := r.store.read(materialsCollection, line.MaterialID, &material)
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, fmt.Errorf("bom line %s references unknown material %s", line.ID, line.MaterialID)
		}

		line.Material = &material

		if line.ProcessID != "" {
			line.Process = processes[line.ProcessID]
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].CreatedAt.Before(lines[j].CreatedAt)
	})

	return lines, nil
}

func (r *BomRepository) ReplaceLines(_ context.Context, styleID string, lines []*models.BomLine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, err := readAll(r.store, bomLinesCollection, func(l *models.BomLine) bool {
		return l.StyleID == styleID && l.IsActive()
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	b := r.store.begin()

	for _, line := range current {
		line.Status = models.StatusInactive
		line.UpdatedAt = now

		err = b.write(bomLinesCollection, line.ID, line)
		if err != nil {
			return b.rollback(err)
		}
	}

	for i, line := range lines {
		line.StyleID = styleID
		line.Status = models.StatusActive
		// Keep the submitted order stable when lines are read back.
		line.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		line.UpdatedAt = now

		stored := *line
		stored.Material = nil
		stored.Process = nil

		err = b.write(bomLinesCollection, line.ID, &stored)
		if err != nil {
			return b.rollback(err)
		}
	}

	return nil
}
