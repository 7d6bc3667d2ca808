// Package file provides file-based persistence for the costing catalog, flows and calculations.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/costura/pkg/persistence"
)

const (
	stylesCollection       = "styles"
	colorsCollection       = "colors"
	sizesCollection        = "sizes"
	materialsCollection    = "materials"
	processesCollection    = "processes"
	colorCostsCollection   = "color_costs"
	bomLinesCollection     = "bom_lines"
	flowsCollection        = "flows"
	variantsCollection     = "variants"
	calculationsCollection = "calculations"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every document is a JSON file under root/<collection>/<id>.json. A single lock
// serialises writers so multi-document updates are seen as one step by readers of
// the same process.
type Persistence struct {
	store           *store
	catalogRepo     *CatalogRepository
	bomRepo         *BomRepository
	flowRepo        *FlowRepository
	calculationRepo *CalculationRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	s := &store{root: strings.Replace(root, "file://", "", 1)}

	return &Persistence{
		store:           s,
		catalogRepo:     &CatalogRepository{store: s},
		bomRepo:         &BomRepository{store: s},
		flowRepo:        &FlowRepository{store: s},
		calculationRepo: &CalculationRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) CatalogRepository() persistence.CatalogRepository {
	return fp.catalogRepo
}

func (fp *Persistence) BomRepository() persistence.BomRepository {
	return fp.bomRepo
}

func (fp *Persistence) FlowRepository() persistence.FlowRepository {
	return fp.flowRepo
}

func (fp *Persistence) CalculationRepository() persistence.CalculationRepository {
	return fp.calculationRepo
}

type store struct {
	root string
	mu   sync.RWMutex
}

func (s *store) path(collection, id string) string {
	return filepath.Clean(path.Join(s.root, collection, id+".json"))
}

// read loads a document into v. It reports false when the document does not exist.
func (s *store) read(collection, id string, v any) (bool, error) {
	body, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to fetch %s %s: %w", collection, id, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return true, nil
}

// write stores v through a temporary file so a document is never left half written.
func (s *store) write(collection, id string, v any) error {
	err := os.MkdirAll(path.Join(s.root, collection), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	target := s.path(collection, id)
	tmp := target + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	err = os.Rename(tmp, target)
	if err != nil {
		return fmt.Errorf("failed to commit %s %s: %w", collection, id, err)
	}

	return nil
}

// batch groups writes that must land together. Each touched document is
// snapshotted before its first write so rollback can put it back.
type batch struct {
	store     *store
	snapshots []snapshot
	seen      map[string]bool
}

type snapshot struct {
	collection string
	id         string
	body       []byte
	existed    bool
}

func (s *store) begin() *batch {
	return &batch{store: s, seen: map[string]bool{}}
}

func (b *batch) write(collection, id string, v any) error {
	key := collection + "/" + id
	if !b.seen[key] {
		body, err := os.ReadFile(b.store.path(collection, id))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to snapshot %s %s: %w", collection, id, err)
		}

		b.seen[key] = true
		b.snapshots = append(b.snapshots, snapshot{collection: collection, id: id, body: body, existed: err == nil})
	}

	return b.store.write(collection, id, v)
}

// rollback restores every touched document in reverse order and returns err
// joined with any restore failure.
func (b *batch) rollback(err error) error {
	for i := len(b.snapshots) - 1; i >= 0; i-- {
		snap := b.snapshots[i]

		if !snap.existed {
			err = errors.Join(err, b.store.remove(snap.collection, snap.id))

			continue
		}

		restoreErr := os.WriteFile(b.store.path(snap.collection, snap.id), snap.body, 0600)
		if restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore %s %s: %w", snap.collection, snap.id, restoreErr))
		}
	}

	return err
}

func (s *store) remove(collection, id string) error {
	err := os.Remove(s.path(collection, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s %s: %w", collection, id, err)
	}

	return nil
}

func (s *store) ids(collection string) ([]string, error) {
	root := os.DirFS(path.Join(s.root, collection))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(f, ".json"))
	}

	return ids, nil
}

// readAll loads every document of a collection, skipping those rejected by keep.
func readAll[T any](s *store, collection string, keep func(*T) bool) ([]*T, error) {
	ids, err := s.ids(collection)
	if err != nil {
		return nil, err
	}

	items := make([]*T, 0, len(ids))

	for _, id := range ids {
		var item T

		found, err := s.read(collection, id, &item)
		if err != nil {
			return nil, err
		}

		if !found {
			continue
		}

		if keep == nil || keep(&item) {
			items = append(items, &item)
		}
	}

	return items, nil
}
