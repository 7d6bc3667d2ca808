package events

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculationCreated_Payload(t *testing.T) {
	event := NewCalculationCreated("style-1", "variant-1", "flow-1", "calc-1", 3,
		decimal.RequireFromString("42.50"), decimal.NewFromInt(35))

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)

	assert.Contains(t, string(jsonData), `"calculation_id":"calc-1"`)
	assert.Contains(t, string(jsonData), `"style_id":"style-1"`)
	assert.Contains(t, string(jsonData), `"total_cost":"42.5"`)
	assert.Equal(t, CalculationCreatedEvent, event.GetType())
	assert.NotEmpty(t, event.ID)
}

func TestFlowChanged_Validate(t *testing.T) {
	tests := []struct {
		name        string
		event       *FlowChanged
		expectedErr string
	}{
		{
			name:  "valid_event",
			event: NewFlowChanged("style-1", "flow-1", FlowSaved),
		},
		{
			name:        "missing_flow_id",
			event:       NewFlowChanged("style-1", "", FlowSaved),
			expectedErr: "flow_id is required",
		},
		{
			name:        "missing_style_id",
			event:       NewFlowChanged("", "flow-1", FlowSaved),
			expectedErr: "style_id is required",
		},
		{
			name:        "missing_change",
			event:       NewFlowChanged("style-1", "flow-1", ""),
			expectedErr: "change is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.expectedErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestFlowChanged_NeedsTotals(t *testing.T) {
	assert.True(t, NewFlowChanged("s", "f", FlowSaved).NeedsTotals())
	assert.True(t, NewFlowChanged("s", "f", FlowEdgeAdded).NeedsTotals())
	assert.False(t, NewFlowChanged("s", "f", FlowDeleted).NeedsTotals())
	assert.False(t, NewFlowChanged("s", "f", FlowPositionsUpdated).NeedsTotals())
}
