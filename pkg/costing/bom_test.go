package costing_test

import (
	"testing"

	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func yarn() *models.Material {
	return &models.Material{
		ID:       "mat-yarn",
		Code:     "YRN-01",
		Name:     "Cotton yarn",
		UnitCost: dec("4"),
		Stock:    dec("500"),
		Kind:     models.MaterialKindYarn,
		Status:   models.StatusActive,
	}
}

func dye() *models.Material {
	return &models.Material{
		ID:       "mat-dye",
		Code:     "DYE-RED",
		Name:     "Reactive red",
		UnitCost: dec("10"),
		Stock:    dec("100"),
		Kind:     models.MaterialKindDye,
		Status:   models.StatusActive,
	}
}

func TestResolveBomLine_SizeScaling(t *testing.T) {
	tests := []struct {
		name          string
		appliesToSize bool
		multiplier    string
		expected      string
	}{
		{name: "scaled when line applies to size", appliesToSize: true, multiplier: "1.15", expected: "2.875"},
		{name: "unscaled when line ignores size", appliesToSize: false, multiplier: "1.15", expected: "2.5"},
		{name: "unscaled for any multiplier", appliesToSize: false, multiplier: "3", expected: "2.5"},
		{name: "zero multiplier", appliesToSize: true, multiplier: "0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := &models.BomLine{
				ID:            "line-1",
				BaseQuantity:  dec("2.5"),
				AppliesToSize: tt.appliesToSize,
				Material:      yarn(),
			}

			resolved, err := costing.ResolveBomLine(line, dec(tt.multiplier), "", nil, 1)
			require.NoError(t, err)

			assert.True(t, dec(tt.expected).Equal(resolved.FinalQuantity), "got %s", resolved.FinalQuantity)
			assert.True(t, resolved.FinalQuantity.Mul(dec("4")).Equal(resolved.LineCost))
		})
	}
}

func TestResolveBomLine_ColorSurcharge(t *testing.T) {
	surcharges := models.NewSurcharges([]*models.MaterialColorCost{
		{MaterialID: "mat-dye", ColorID: "red", AdditionalCost: decimal.NewNullDecimal(dec("1.5"))},
		{MaterialID: "mat-yarn", ColorID: "red", AdditionalCost: decimal.NewNullDecimal(dec("9"))},
		{MaterialID: "mat-dye", ColorID: "blue", AdditionalCost: decimal.NullDecimal{}},
	})

	t.Run("dye with surcharge", func(t *testing.T) {
		line := &models.BomLine{BaseQuantity: dec("2"), AppliesToColor: true, Material: dye()}

		resolved, err := costing.ResolveBomLine(line, dec("1"), "red", surcharges, 1)
		require.NoError(t, err)

		assert.True(t, dec("11.5").Equal(resolved.UnitCost))
		assert.True(t, dec("23").Equal(resolved.LineCost))
		assert.Empty(t, resolved.Alerts)
	})

	t.Run("dye without surcharge row", func(t *testing.T) {
		line := &models.BomLine{BaseQuantity: dec("2"), AppliesToColor: true, Material: dye()}

		resolved, err := costing.ResolveBomLine(line, dec("1"), "blue", surcharges, 1)
		require.NoError(t, err)

		assert.True(t, dec("10").Equal(resolved.UnitCost))
	})

	t.Run("dye line not applying to color", func(t *testing.T) {
		line := &models.BomLine{BaseQuantity: dec("2"), Material: dye()}

		resolved, err := costing.ResolveBomLine(line, dec("1"), "red", surcharges, 1)
		require.NoError(t, err)

		assert.True(t, dec("10").Equal(resolved.UnitCost))
	})

	t.Run("non dye material ignores surcharge and warns", func(t *testing.T) {
		line := &models.BomLine{BaseQuantity: dec("2"), AppliesToColor: true, Material: yarn()}

		resolved, err := costing.ResolveBomLine(line, dec("1"), "red", surcharges, 1)
		require.NoError(t, err)

		assert.True(t, dec("4").Equal(resolved.UnitCost))
		require.Len(t, resolved.Alerts, 1)
		assert.Equal(t, costing.AlertColorOnNonDye, resolved.Alerts[0].Type)
		assert.Equal(t, costing.AlertLevelWarning, resolved.Alerts[0].Level)
	})
}

func TestResolveBomLine_Alerts(t *testing.T) {
	material := yarn()
	material.Stock = dec("8")
	material.IsCritical = true
	material.Status = models.StatusInactive

	line := &models.BomLine{BaseQuantity: dec("3"), Material: material}

	resolved, err := costing.ResolveBomLine(line, dec("1"), "", nil, 4)
	require.NoError(t, err)

	assert.True(t, dec("12").Equal(resolved.Stock.Required))
	assert.True(t, dec("8").Equal(resolved.Stock.Available))
	assert.True(t, dec("4").Equal(resolved.Stock.Shortfall))
	assert.False(t, resolved.Stock.Sufficient)

	types := make([]costing.AlertType, 0, len(resolved.Alerts))
	for _, a := range resolved.Alerts {
		types = append(types, a.Type)
	}

	assert.Equal(t, []costing.AlertType{
		costing.AlertInsufficientStock,
		costing.AlertCriticalLowStock,
		costing.AlertInactiveMaterial,
	}, types)
	assert.True(t, dec("4").Equal(*resolved.Alerts[0].Shortfall))
}

func TestResolveBomLine_MissingMaterial(t *testing.T) {
	_, err := costing.ResolveBomLine(&models.BomLine{ID: "orphan"}, dec("1"), "", nil, 1)
	require.ErrorIs(t, err, costing.ErrMaterialNotLoaded)
}

func TestCheckStock(t *testing.T) {
	check := costing.CheckStock(dec("2"), dec("10"), 5)
	assert.True(t, check.Sufficient)
	assert.True(t, check.Shortfall.IsZero())

	check = costing.CheckStock(dec("2"), dec("10"), 0)
	assert.True(t, dec("2").Equal(check.Required))
}

func TestBomStatistics(t *testing.T) {
	lines := []*models.BomLine{
		{ID: "1", BaseQuantity: dec("2"), AppliesToSize: true, IsCritical: true, ProcessID: "p-knit", Material: yarn()},
		{ID: "2", BaseQuantity: dec("1"), AppliesToColor: true, ProcessID: "p-dye", Material: dye()},
		{ID: "3", BaseQuantity: dec("1"), ProcessID: "p-knit", Material: yarn()},
		{ID: "4", BaseQuantity: dec("100"), Status: models.StatusInactive, Material: yarn()},
	}

	stats := costing.BomStatistics(lines, dec("1.5"))

	assert.Equal(t, 3, stats.TotalLines)
	assert.Equal(t, 1, stats.CriticalLines)
	assert.Equal(t, 1, stats.SizeLines)
	assert.Equal(t, 1, stats.ColorLines)
	assert.Equal(t, []string{"p-dye", "p-knit"}, stats.Processes)
	assert.Equal(t, 2, stats.ByKind[models.MaterialKindYarn])
	assert.Equal(t, 1, stats.ByKind[models.MaterialKindDye])
	// 2*1.5*4 + 1*10 + 1*4
	assert.True(t, dec("26").Equal(stats.TotalMaterialCost), "got %s", stats.TotalMaterialCost)
}
