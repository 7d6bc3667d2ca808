package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
)

// CatalogRepository handles catalog documents.
type CatalogRepository struct {
	store *store
}

func (r *CatalogRepository) GetStyle(_ context.Context, id string) (*models.Style, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Style](r.store, stylesCollection, id, persistence.ErrStyleNotFound)
}

func (r *CatalogRepository) ListStyles(_ context.Context) ([]*models.Style, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	styles, err := readAll[models.Style](r.store, stylesCollection, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(styles, func(i, j int) bool { return styles[i].Code < styles[j].Code })

	return styles, nil
}

func (r *CatalogRepository) SaveStyle(_ context.Context, style *models.Style) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	if style.CreatedAt.IsZero() {
		style.CreatedAt = now
	}

	style.UpdatedAt = now

	return r.store.write(stylesCollection, style.ID, style)
}

func (r *CatalogRepository) GetColor(_ context.Context, id string) (*models.Color, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Color](r.store, colorsCollection, id, persistence.ErrColorNotFound)
}

func (r *CatalogRepository) SaveColor(_ context.Context, color *models.Color) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(colorsCollection, color.ID, color)
}

func (r *CatalogRepository) GetSize(_ context.Context, id string) (*models.Size, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Size](r.store, sizesCollection, id, persistence.ErrSizeNotFound)
}

func (r *CatalogRepository) SaveSize(_ context.Context, size *models.Size) error {
	err := size.Validate()
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(sizesCollection, size.ID, size)
}

func (r *CatalogRepository) GetMaterial(_ context.Context, id string) (*models.Material, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Material](r.store, materialsCollection, id, persistence.ErrMaterialNotFound)
}

func (r *CatalogRepository) SaveMaterial(_ context.Context, material *models.Material) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}

	material.UpdatedAt = now

	return r.store.write(materialsCollection, material.ID, material)
}

func (r *CatalogRepository) GetProcess(_ context.Context, id string) (*models.Process, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Process](r.store, processesCollection, id, persistence.ErrProcessNotFound)
}

func (r *CatalogRepository) ListProcesses(_ context.Context) ([]*models.Process, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	processes, err := readAll[models.Process](r.store, processesCollection, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(processes, func(i, j int) bool { return processes[i].Code < processes[j].Code })

	return processes, nil
}

func (r *CatalogRepository) SaveProcess(_ context.Context, process *models.Process) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	if process.CreatedAt.IsZero() {
		process.CreatedAt = now
	}

	process.UpdatedAt = now

	return r.store.write(processesCollection, process.ID, process)
}

func (r *CatalogRepository) ColorCosts(_ context.Context, colorID string) ([]*models.MaterialColorCost, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return readAll(r.store, colorCostsCollection, func(c *models.MaterialColorCost) bool {
		return c.ColorID == colorID
	})
}

func (r *CatalogRepository) SaveColorCost(_ context.Context, cost *models.MaterialColorCost) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(colorCostsCollection, cost.MaterialID+"_"+cost.ColorID, cost)
}

// getDocument reads a document or returns notFound wrapped with context.
func getDocument[T any](s *store, collection, id string, notFound error) (*T, error) {
	var item T

	found, err := s.read(collection, id, &item)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.NewEntityError("Get", collection, id, notFound)
	}

	return &item, nil
}

// processIndex loads every process keyed by id.
func processIndex(s *store) (map[string]*models.Process, error) {
	processes, err := readAll[models.Process](s, processesCollection, nil)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*models.Process, len(processes))
	for _, p := range processes {
		index[p.ID] = p
	}

	return index, nil
}
