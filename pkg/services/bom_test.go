package services

import (
	"testing"

	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBom_ResolveForVariant(t *testing.T) {
	service := NewBom(newPersistence(t), silentLogger)

	tests := []struct {
		name       string
		colorID    string
		pieces     int
		materials  string
		perPiece   string
		sufficient bool
		short      int
		alerts     []costing.AlertType
	}{
		{
			name:       "enough stock",
			colorID:    colorID,
			pieces:     10,
			materials:  "117.5",
			perPiece:   "11.75",
			sufficient: true,
			alerts:     []costing.AlertType{costing.AlertCriticalLowStock},
		},
		{
			name:       "dye runs short",
			colorID:    colorID,
			pieces:     20,
			materials:  "235",
			perPiece:   "11.75",
			sufficient: false,
			short:      1,
			alerts:     []costing.AlertType{costing.AlertInsufficientStock, costing.AlertCriticalLowStock},
		},
		{
			name:       "without color",
			pieces:     0,
			materials:  "10.75",
			perPiece:   "10.75",
			sufficient: true,
			alerts:     []costing.AlertType{costing.AlertCriticalLowStock},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolution, err := service.ResolveForVariant(t.Context(), styleID, sizeID, tt.colorID, tt.pieces)
			require.NoError(t, err)

			assert.Len(t, resolution.Lines, 2)
			assert.Equal(t, tt.materials, resolution.Totals.Materials.String())
			assert.Equal(t, tt.perPiece, resolution.Totals.PerPiece.String())
			assert.Equal(t, tt.sufficient, resolution.Availability.Sufficient)
			assert.Equal(t, tt.short, resolution.Availability.LinesShort)
			assert.Equal(t, 2, resolution.Availability.TotalLines)

			types := make([]costing.AlertType, 0, len(resolution.Alerts))
			for _, a := range resolution.Alerts {
				types = append(types, a.Type)
			}

			assert.Equal(t, tt.alerts, types)
		})
	}
}

func TestBom_ResolveForVariant_Errors(t *testing.T) {
	service := NewBom(newPersistence(t), silentLogger)

	_, err := service.ResolveForVariant(t.Context(), emptyID, sizeID, "", 1)
	require.ErrorIs(t, err, ErrNoActiveBom)
	assert.True(t, IsNotFoundError(err))

	_, err = service.ResolveForVariant(t.Context(), styleID, "", "", 1)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.ResolveForVariant(t.Context(), styleID, sizeID, "color-missing", 1)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestBom_Statistics(t *testing.T) {
	service := NewBom(newPersistence(t), silentLogger)

	stats, err := service.Statistics(t.Context(), styleID, "")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalLines)
	assert.Equal(t, 1, stats.CriticalLines)
	assert.Equal(t, 1, stats.SizeLines)
	assert.Equal(t, 1, stats.ColorLines)
	assert.Equal(t, "10", stats.TotalMaterialCost.String())
	assert.Equal(t, 1, stats.ByKind[models.MaterialKindDye])

	stats, err = service.Statistics(t.Context(), styleID, sizeID)
	require.NoError(t, err)
	assert.Equal(t, "10.75", stats.TotalMaterialCost.String())
}

func TestBom_ReplaceLines(t *testing.T) {
	service := NewBom(newPersistence(t), silentLogger)
	ctx := t.Context()

	_, err := service.ReplaceLines(ctx, styleID, []BomLineInput{
		{MaterialID: yarnID, BaseQuantity: dec("1")},
		{MaterialID: yarnID, BaseQuantity: dec("2")},
		{MaterialID: "mat-missing", BaseQuantity: dec("-1")},
		{MaterialID: dyeID, ProcessID: "proc-missing", BaseQuantity: dec("1")},
	})
	require.ErrorIs(t, err, ErrInvalidBom)

	violations, ok := Violations(err)
	require.True(t, ok)
	assert.Equal(t, []string{
		"line 2: material mat-yarn is already in the bom",
		"line 3: base quantity must not be negative",
		"line 3: material mat-missing does not exist",
		"line 4: process proc-missing does not exist",
	}, violations)

	lines, err := service.ReplaceLines(ctx, styleID, []BomLineInput{
		{MaterialID: yarnID, ProcessID: "proc-sew", BaseQuantity: dec("3"), AppliesToSize: true},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "3", lines[0].BaseQuantity.String())
	require.NotNil(t, lines[0].Material)
	assert.Equal(t, "Cotton yarn", lines[0].Material.Name)

	stats, err := service.Statistics(ctx, styleID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalLines)
	assert.Equal(t, []string{"proc-sew"}, stats.Processes)
}
