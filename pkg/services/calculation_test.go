package services

import (
	"errors"
	"testing"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/costing"
	"github.com/dukex/costura/pkg/events"
	"github.com/dukex/costura/pkg/mocks"
	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCalculation(t *testing.T) (*Calculation, *memoryCache, *mocks.MockEventBus) {
	t.Helper()

	c := newMemoryCache()
	bus := newPublisher()

	return NewCalculation(newPersistence(t), c, bus, nil, silentLogger), c, bus
}

func TestCalculation_CalculateVariant(t *testing.T) {
	service, c, bus := newCalculation(t)

	breakdown, err := service.CalculateVariant(t.Context(), CalculateVariantRequest{
		StyleID: styleID, ColorID: colorID, SizeID: sizeID, Pieces: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, breakdown.Version)
	assert.Equal(t, "POLO-FF0-M", breakdown.Variant.SKU)
	assert.Equal(t, "1.15", breakdown.Variant.SizeMultiplier.String())
	assert.Equal(t, flowID, breakdown.Flow.ID)

	assert.Equal(t, "117.5", breakdown.Costs.Materials.String())
	assert.Equal(t, "310", breakdown.Costs.Processes.String())
	assert.Equal(t, "427.5", breakdown.Costs.Total.String())
	assert.Equal(t, "42.75", breakdown.Costs.PerPiece.String())
	assert.Equal(t, "88", breakdown.Time.Total.String())
	assert.Equal(t, "88", breakdown.Time.PerPiece.String())

	require.Len(t, breakdown.BomLines, 2)
	assert.Equal(t, "2.3", breakdown.BomLines[0].FinalQuantity.String())
	assert.Equal(t, "12", breakdown.BomLines[1].UnitCost.String())
	require.Len(t, breakdown.BomLines[1].Alerts, 1)
	assert.Equal(t, costing.AlertCriticalLowStock, breakdown.BomLines[1].Alerts[0].Type)

	assert.Len(t, breakdown.FlowNodes, 4)
	assert.Equal(t, 2, breakdown.Statistics.BomLines)
	assert.Equal(t, 4, breakdown.Statistics.FlowNodes)
	assert.Equal(t, "27.49", breakdown.Statistics.MaterialCostPercentage.String())
	assert.Equal(t, "72.51", breakdown.Statistics.ProcessCostPercentage.String())

	assert.True(t, c.has(cache.CalculationKey(breakdown.CalculationID)))

	published := bus.Published()
	require.Len(t, published, 1)

	created, ok := published[0].(*events.CalculationCreated)
	require.True(t, ok)
	assert.Equal(t, breakdown.CalculationID, created.CalculationID)
	assert.Equal(t, styleID, created.StyleID)
	bus.AssertCalled(t, "Publish", mock.Anything, breakdown.Variant.ID, mock.Anything)
}

func TestCalculation_CalculateVariant_NewVersions(t *testing.T) {
	service, c, _ := newCalculation(t)
	ctx := t.Context()

	_, err := service.StyleSummary(ctx, styleID)
	require.NoError(t, err)
	require.True(t, c.has(cache.StyleSummaryKey(styleID)))

	first, err := service.CalculateVariant(ctx, CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID})
	require.NoError(t, err)
	assert.False(t, c.has(cache.StyleSummaryKey(styleID)))

	second, err := service.CalculateVariant(ctx, CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID, Pieces: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.Variant.ID, second.Variant.ID)
	assert.Equal(t, 1, first.Variant.Pieces)

	history, err := service.History(ctx, styleID, colorID, sizeID)
	require.NoError(t, err)
	assert.Equal(t, 2, history.Count)
	require.NotNil(t, history.Current)
	assert.Equal(t, second.CalculationID, history.Current.ID)
	assert.Equal(t, 2, history.Calculations[0].Version)
	assert.False(t, history.Calculations[1].IsCurrent)
	assert.True(t, second.Costs.Total.Equal(history.Variant.Cost))
}

func TestCalculation_CalculateVariant_AbsentMultiplier(t *testing.T) {
	service, _, _ := newCalculation(t)

	breakdown, err := service.CalculateVariant(t.Context(), CalculateVariantRequest{
		StyleID: styleID, ColorID: colorID, SizeID: smallID, Pieces: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "1", breakdown.Variant.SizeMultiplier.String())
	assert.Equal(t, "2", breakdown.BomLines[0].FinalQuantity.String())
	assert.Equal(t, "11", breakdown.Costs.Materials.String())
}

func TestCalculation_CalculateVariant_Errors(t *testing.T) {
	service, _, bus := newCalculation(t)

	otherFlow := poloFlow("flow-tee", true, models.FlowStatusActive)
	otherFlow.StyleID = emptyID
	otherFlow.Nodes = nil
	otherFlow.Edges = nil
	require.NoError(t, service.persistence.FlowRepository().Create(t.Context(), otherFlow))

	tests := []struct {
		name  string
		req   CalculateVariantRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "missing identifiers",
			req:  CalculateVariantRequest{StyleID: styleID},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidRequest)
				assert.True(t, IsViolationError(err))

				violations, _ := Violations(err)
				assert.Equal(t, []string{"color_id is required", "size_id is required"}, violations)
			},
		},
		{
			name: "negative pieces",
			req:  CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID, Pieces: -1},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidRequest)
				assert.True(t, IsViolationError(err))
				assert.False(t, IsValidationError(err))

				violations, _ := Violations(err)
				assert.Equal(t, []string{"pieces must be at least 1"}, violations)
			},
		},
		{
			name: "unknown color",
			req:  CalculateVariantRequest{StyleID: styleID, ColorID: "color-missing", SizeID: sizeID},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, persistence.ErrColorNotFound)
				assert.True(t, IsNotFoundError(err))
			},
		},
		{
			name: "flow of another style",
			req:  CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID, FlowID: "flow-tee"},
			check: func(t *testing.T, err error) {
				assert.True(t, persistence.IsFlowNotFound(err))
			},
		},
		{
			name: "unknown flow",
			req:  CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID, FlowID: "flow-missing"},
			check: func(t *testing.T, err error) {
				assert.True(t, IsNotFoundError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CalculateVariant(t.Context(), tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestCalculation_CalculateVariant_NoCurrentFlow(t *testing.T) {
	service, _, _ := newCalculation(t)

	_, err := service.CalculateVariant(t.Context(), CalculateVariantRequest{
		StyleID: emptyID, ColorID: colorID, SizeID: sizeID,
	})
	require.ErrorIs(t, err, ErrNoCurrentFlow)
	assert.True(t, IsValidationError(err))
}

func TestCalculation_CalculateVariant_ExplicitFlow(t *testing.T) {
	service, _, _ := newCalculation(t)
	ctx := t.Context()

	draft := poloFlow("flow-polo-draft", false, models.FlowStatusDraft)
	draft.Nodes = draft.Nodes[:1]
	draft.Edges = nil
	require.NoError(t, service.persistence.FlowRepository().Create(ctx, draft))

	breakdown, err := service.CalculateVariant(ctx, CalculateVariantRequest{
		StyleID: styleID, ColorID: colorID, SizeID: sizeID, FlowID: draft.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, draft.ID, breakdown.Flow.ID)
	assert.Equal(t, 2, breakdown.Flow.Version)
	assert.Equal(t, "11", breakdown.Costs.Processes.String())
	assert.Equal(t, "33", breakdown.Time.Total.String())
}

func TestCalculation_CalculateVariant_PublishFailureIsNotReturned(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	service := NewCalculation(newPersistence(t), nil, bus, nil, silentLogger)

	breakdown, err := service.CalculateVariant(t.Context(), CalculateVariantRequest{
		StyleID: styleID, ColorID: colorID, SizeID: sizeID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, breakdown.Version)
}

func TestCalculation_Get(t *testing.T) {
	service, c, _ := newCalculation(t)
	ctx := t.Context()

	breakdown, err := service.CalculateVariant(ctx, CalculateVariantRequest{StyleID: styleID, ColorID: colorID, SizeID: sizeID, Pieces: 10})
	require.NoError(t, err)

	summary, err := service.Get(ctx, breakdown.CalculationID)
	require.NoError(t, err)

	assert.Equal(t, breakdown.CalculationID, summary.ID)
	assert.Equal(t, "Polo production", summary.FlowName)
	assert.Equal(t, "POLO-FF0-M", summary.Variant.SKU)
	assert.Equal(t, "27.49", summary.MaterialCostPercentage.String())
	require.NotNil(t, summary.Breakdown)
	assert.Equal(t, "427.5", summary.Breakdown.Costs.Total.String())

	require.NoError(t, c.Delete(ctx, cache.CalculationKey(breakdown.CalculationID)))

	summary, err = service.Get(ctx, breakdown.CalculationID)
	require.NoError(t, err)
	assert.Nil(t, summary.Breakdown)

	_, err = service.Get(ctx, "calc-missing")
	require.Error(t, err)
	assert.True(t, persistence.IsCalculationNotFound(err))
}
