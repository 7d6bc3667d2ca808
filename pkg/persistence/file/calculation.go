package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/google/uuid"
)

// CalculationRepository handles variant and calculation documents.
type CalculationRepository struct {
	store *store
}

func (r *CalculationRepository) Record(_ context.Context, record *persistence.CalculationRecord) (*models.Variant, *models.VariantCalculation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()

	variant, err := r.findVariant(record.StyleID, record.ColorID, record.SizeID)
	if err != nil {
		return nil, nil, err
	}

	if variant == nil {
		variant = &models.Variant{
			ID:        uuid.NewString(),
			StyleID:   record.StyleID,
			ColorID:   record.ColorID,
			SizeID:    record.SizeID,
			SKU:       record.SKU,
			CreatedAt: now,
		}
	}

	history, err := r.history(variant.ID)
	if err != nil {
		return nil, nil, err
	}

	version := 0
	for _, c := range history {
		version = max(version, c.Version)
	}

	calculatedAt := record.CalculatedAt
	if calculatedAt.IsZero() {
		calculatedAt = now
	}

	calculation := &models.VariantCalculation{
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

	stored := *variant
	stored.Cost = record.TotalCost
	stored.TimeMinutes = record.TotalTimeMinutes
	stored.UpdatedAt = now

	// New row and variant first, demotions last, so any failure rolls back to the
	// previous current calculation.
	b := r.store.begin()

	err = b.write(calculationsCollection, calculation.ID, calculation)
	if err != nil {
		return nil, nil, b.rollback(err)
	}

	err = b.write(variantsCollection, stored.ID, &stored)
	if err != nil {
		return nil, nil, b.rollback(err)
	}

	for _, c := range history {
		if !c.IsCurrent {
			continue
		}

		demoted := *c
		demoted.IsCurrent = false

		err = b.write(calculationsCollection, demoted.ID, &demoted)
		if err != nil {
			return nil, nil, b.rollback(err)
		}
	}

	variant = &stored

	return variant, calculation, nil
}

func (r *CalculationRepository) GetByID(_ context.Context, id string) (*models.VariantCalculation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.VariantCalculation](r.store, calculationsCollection, id, persistence.ErrCalculationNotFound)
}

func (r *CalculationRepository) ListByVariant(_ context.Context, variantID string) ([]*models.VariantCalculation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.history(variantID)
}

func (r *CalculationRepository) CurrentByStyle(_ context.Context, styleID string) ([]*models.VariantCalculation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	variants, err := r.styleVariants(styleID)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool, len(variants))
	for _, v := range variants {
		ids[v.ID] = true
	}

	current, err := readAll(r.store, calculationsCollection, func(c *models.VariantCalculation) bool {
		return c.IsCurrent && ids[c.VariantID]
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(current, func(i, j int) bool { return current[i].CalculatedAt.Before(current[j].CalculatedAt) })

	return current, nil
}

func (r *CalculationRepository) GetVariant(_ context.Context, id string) (*models.Variant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return getDocument[models.Variant](r.store, variantsCollection, id, persistence.ErrVariantNotFound)
}

func (r *CalculationRepository) FindVariant(_ context.Context, styleID, colorID, sizeID string) (*models.Variant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	variant, err := r.findVariant(styleID, colorID, sizeID)
	if err != nil {
		return nil, err
	}

	if variant == nil {
		return nil, persistence.NewEntityError("FindVariant", "style", styleID, persistence.ErrVariantNotFound)
	}

	return variant, nil
}

func (r *CalculationRepository) ListVariantsByStyle(_ context.Context, styleID string) ([]*models.Variant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.styleVariants(styleID)
}

func (r *CalculationRepository) findVariant(styleID, colorID, sizeID string) (*models.Variant, error) {
	variants, err := readAll(r.store, variantsCollection, func(v *models.Variant) bool {
		return v.StyleID == styleID && v.ColorID == colorID && v.SizeID == sizeID
	})
	if err != nil {
		return nil, err
	}

	if len(variants) == 0 {
		return nil, nil
	}

	return variants[0], nil
}

func (r *CalculationRepository) styleVariants(styleID string) ([]*models.Variant, error) {
	variants, err := readAll(r.store, variantsCollection, func(v *models.Variant) bool {
		return v.StyleID == styleID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(variants, func(i, j int) bool { return variants[i].SKU < variants[j].SKU })

	return variants, nil
}

func (r *CalculationRepository) history(variantID string) ([]*models.VariantCalculation, error) {
	calculations, err := readAll(r.store, calculationsCollection, func(c *models.VariantCalculation) bool {
		return c.VariantID == variantID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(calculations, func(i, j int) bool { return calculations[i].Version > calculations[j].Version })

	return calculations, nil
}
