package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/persistence/file"
	"github.com/dukex/costura/pkg/services"
	"github.com/dukex/costura/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type problem struct {
	Type   string   `json:"type"`
	Status int      `json:"status"`
	Detail string   `json:"detail"`
	Errors []string `json:"errors"`
}

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())
	seed(t, store)

	handlers := web.NewAPIHandlers(
		services.NewCalculation(store, nil, nil, nil, logger),
		services.NewFlow(store, nil, logger),
		services.NewBom(store, logger),
		nil,
		web.NewValidator(),
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

// seed stores a style with one fabric line, an active current flow (cut -> sew)
// and a draft flow with neither start nor end point.
func seed(t *testing.T, p *file.Persistence) {
	t.Helper()

	ctx := t.Context()
	catalog := p.CatalogRepository()

	require.NoError(t, catalog.SaveStyle(ctx, &models.Style{ID: "style-1", Code: "TEE", Name: "T-shirt"}))
	require.NoError(t, catalog.SaveColor(ctx, &models.Color{ID: "color-blue", Name: "Blue", HexCode: "#0000FF"}))
	require.NoError(t, catalog.SaveSize(ctx, &models.Size{
		ID: "size-m", Code: "M", Name: "Medium", QuantityMultiplier: decimal.NewNullDecimal(decimal.NewFromInt(1)),
	}))
	require.NoError(t, catalog.SaveMaterial(ctx, &models.Material{
		ID: "mat-fabric", Code: "FAB", Name: "Jersey", UnitCost: decimal.NewFromInt(4), Stock: decimal.NewFromInt(1000),
		Kind: models.MaterialKindYarn, Status: models.StatusActive,
	}))
	require.NoError(t, catalog.SaveProcess(ctx, &models.Process{
		ID: "proc-cut", Code: "CUT", Name: "Cutting", BaseCost: decimal.NewFromInt(10), BaseTimeMinutes: decimal.NewFromInt(30),
	}))
	require.NoError(t, catalog.SaveProcess(ctx, &models.Process{
		ID: "proc-sew", Code: "SEW", Name: "Sewing", BaseCost: decimal.NewFromInt(5), BaseTimeMinutes: decimal.NewFromInt(15),
	}))

	require.NoError(t, p.BomRepository().ReplaceLines(ctx, "style-1", []*models.BomLine{
		{ID: "line-fabric", MaterialID: "mat-fabric", BaseQuantity: decimal.NewFromInt(2), AppliesToSize: true},
	}))

	require.NoError(t, p.FlowRepository().Create(ctx, &models.Flow{
		ID: "flow-1", StyleID: "style-1", Name: "T-shirt", IsCurrent: true, Status: models.FlowStatusActive,
		Nodes: []*models.FlowNode{
			{ID: "node-cut", ProcessID: "proc-cut", SequenceOrder: 1, IsStart: true},
			{ID: "node-sew", ProcessID: "proc-sew", SequenceOrder: 2, IsEnd: true},
		},
		Edges: []*models.FlowEdge{
			{ID: "edge-1", OriginNodeID: "node-cut", DestinationNodeID: "node-sew", Type: models.ConnectionSequential, Priority: 1},
		},
	}))
	require.NoError(t, p.FlowRepository().Create(ctx, &models.Flow{
		ID: "flow-draft", StyleID: "style-1", Name: "T-shirt draft", Status: models.FlowStatusDraft,
		Nodes: []*models.FlowNode{
			{ID: "draft-cut", ProcessID: "proc-cut", SequenceOrder: 1},
			{ID: "draft-sew", ProcessID: "proc-sew", SequenceOrder: 2},
		},
	}))
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decodeProblem(t *testing.T, body []byte) problem {
	t.Helper()

	var p problem
	require.NoError(t, json.Unmarshal(body, &p))

	return p
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "Persistence layer is healthy", health["checkers"].(map[string]any)["persistence"])
}

func TestAPIHandlers_CalculateVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful calculation",
			requestBody: services.CalculateVariantRequest{
				StyleID: "style-1", ColorID: "color-blue", SizeID: "size-m", Pieces: 2,
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var breakdown services.CalculationBreakdown
				require.NoError(t, json.Unmarshal(body, &breakdown))
				assert.NotEmpty(t, breakdown.CalculationID)
				assert.Equal(t, 1, breakdown.Version)
				assert.Equal(t, "TEE-000-M", breakdown.Variant.SKU)
				assert.Equal(t, "flow-1", breakdown.Flow.ID)
				assert.Equal(t, "16", breakdown.Costs.Materials.String())
				assert.Equal(t, "30", breakdown.Costs.Processes.String())
				assert.Equal(t, "46", breakdown.Costs.Total.String())
				assert.Equal(t, "23", breakdown.Costs.PerPiece.String())
			},
		},
		{
			name:           "missing size",
			requestBody:    services.CalculateVariantRequest{StyleID: "style-1", ColorID: "color-blue"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "invalid_request",
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				assert.Equal(t, []string{"size_id is required"}, decodeProblem(t, body).Errors)
			},
		},
		{
			name:           "negative pieces",
			requestBody:    `{"style_id": "style-1", "color_id": "color-blue", "size_id": "size-m", "pieces": -3}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "invalid_request",
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				assert.Equal(t, []string{"pieces must be at least 1"}, decodeProblem(t, body).Errors)
			},
		},
		{
			name:           "malformed body",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "unknown color",
			requestBody: services.CalculateVariantRequest{
				StyleID: "style-1", ColorID: "color-missing", SizeID: "size-m",
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   "color_not_found",
		},
		{
			name: "unknown flow",
			requestBody: services.CalculateVariantRequest{
				StyleID: "style-1", ColorID: "color-blue", SizeID: "size-m", FlowID: "flow-missing",
			},
			expectedStatus: http.StatusNotFound,
			expectedType:   "flow_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/calculations", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decodeProblem(t, body).Type)
			}

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_CalculationReads(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	request := services.CalculateVariantRequest{StyleID: "style-1", ColorID: "color-blue", SizeID: "size-m"}

	_, body := do(t, app, http.MethodPost, "/calculations", request)

	var first services.CalculationBreakdown
	require.NoError(t, json.Unmarshal(body, &first))

	request.Pieces = 4
	_, body = do(t, app, http.MethodPost, "/calculations", request)

	var second services.CalculationBreakdown
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, 2, second.Version)

	status, body := do(t, app, http.MethodGet, "/calculations/"+first.CalculationID, nil)
	require.Equal(t, http.StatusOK, status)

	var summary services.CalculationSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, "T-shirt", summary.FlowName)

	status, body = do(t, app, http.MethodGet, "/calculations/compare?base="+first.CalculationID+"&other="+second.CalculationID, nil)
	require.Equal(t, http.StatusOK, status)

	var comparison services.CalculationComparison
	require.NoError(t, json.Unmarshal(body, &comparison))
	assert.Equal(t, "69", comparison.Differences.TotalCost.String())
	assert.Equal(t, "300", comparison.Differences.CostChangePercentage.String())

	status, body = do(t, app, http.MethodGet, "/styles/style-1/variants/history?color_id=color-blue&size_id=size-m", nil)
	require.Equal(t, http.StatusOK, status)

	var history services.VariantHistory
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Equal(t, 2, history.Count)
	require.NotNil(t, history.Current)
	assert.Equal(t, second.CalculationID, history.Current.ID)

	status, body = do(t, app, http.MethodGet, "/styles/style-1/calculations/summary", nil)
	require.Equal(t, http.StatusOK, status)

	var styleSummary services.StyleSummary
	require.NoError(t, json.Unmarshal(body, &styleSummary))
	assert.Equal(t, 1, styleSummary.CalculatedVariants)
	require.NotNil(t, styleSummary.Costs)
	assert.Equal(t, "92", styleSummary.Costs.Average.String())
}

func TestAPIHandlers_CalculationReads_Errors(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedType   string
	}{
		{"unknown calculation", "/calculations/calc-missing", http.StatusNotFound, "calculation_not_found"},
		{"compare without other", "/calculations/compare?base=calc-1", http.StatusUnprocessableEntity, "invalid_request"},
		{"history without size", "/styles/style-1/variants/history?color_id=color-blue", http.StatusUnprocessableEntity, "invalid_request"},
		{"history never calculated", "/styles/style-1/variants/history?color_id=color-blue&size_id=size-m", http.StatusNotFound, "variant_not_found"},
		{"summary of unknown style", "/styles/style-missing/calculations/summary", http.StatusNotFound, "style_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, status, string(body))
			assert.Equal(t, tt.expectedType, decodeProblem(t, body).Type)
		})
	}
}

func TestAPIHandlers_Bom(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/styles/style-1/bom/resolve?size_id=size-m&pieces=2", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resolution services.BomResolution
	require.NoError(t, json.Unmarshal(body, &resolution))
	assert.Len(t, resolution.Lines, 1)
	assert.Equal(t, "16", resolution.Totals.Materials.String())
	assert.True(t, resolution.Availability.Sufficient)

	status, body = do(t, app, http.MethodGet, "/styles/style-1/bom/resolve?pieces=2", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_request", decodeProblem(t, body).Type)
	assert.Equal(t, []string{"size_id is required"}, decodeProblem(t, body).Errors)

	status, body = do(t, app, http.MethodGet, "/styles/style-1/bom/statistics", nil)
	require.Equal(t, http.StatusOK, status)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.InDelta(t, 1, stats["total_lines"], 0)

	status, body = do(t, app, http.MethodPut, "/styles/style-1/bom", web.ReplaceBomRequest{
		Lines: []services.BomLineInput{
			{MaterialID: "mat-fabric", BaseQuantity: decimal.NewFromInt(1)},
			{MaterialID: "mat-fabric", BaseQuantity: decimal.NewFromInt(2)},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	p := decodeProblem(t, body)
	assert.Equal(t, "invalid_bom", p.Type)
	assert.Equal(t, []string{"line 2: material mat-fabric is already in the bom"}, p.Errors)

	status, body = do(t, app, http.MethodPut, "/styles/style-1/bom", web.ReplaceBomRequest{
		Lines: []services.BomLineInput{
			{MaterialID: "mat-fabric", ProcessID: "proc-cut", BaseQuantity: decimal.NewFromInt(3)},
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodGet, "/styles/style-1/bom/resolve?size_id=size-m", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resolution))
	assert.Equal(t, "12", resolution.Totals.Materials.String())
}

func TestAPIHandlers_FlowLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/styles/style-1/flows", nil)
	require.Equal(t, http.StatusOK, status)

	var flows []models.Flow
	require.NoError(t, json.Unmarshal(body, &flows))
	assert.Len(t, flows, 2)

	status, body = do(t, app, http.MethodPost, "/flows/flow-draft/activate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	p := decodeProblem(t, body)
	assert.Equal(t, "inconsistent_flow", p.Type)
	assert.Contains(t, p.Errors, "flow has no start point")

	status, body = do(t, app, http.MethodPost, "/flows/flow-draft/promote", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", decodeProblem(t, body).Type)

	status, body = do(t, app, http.MethodPost, "/flows/flow-draft/edges", services.AddEdgeRequest{
		OriginNodeID: "draft-cut", DestinationNodeID: "draft-cut",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_edge", decodeProblem(t, body).Type)

	status, body = do(t, app, http.MethodPost, "/flows/flow-draft/edges", services.AddEdgeRequest{
		OriginNodeID: "draft-cut", DestinationNodeID: "draft-sew",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var edge models.FlowEdge
	require.NoError(t, json.Unmarshal(body, &edge))
	assert.Equal(t, models.ConnectionSequential, edge.Type)
	assert.Equal(t, models.DefaultLineColor, edge.LineColor)

	status, _ = do(t, app, http.MethodPatch, "/flows/flow-1/positions", web.UpdatePositionsRequest{
		Positions: []persistence.NodePosition{{NodeID: "node-cut", PositionX: 40, PositionY: 120}},
	})
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodPatch, "/flows/flow-1/positions", web.UpdatePositionsRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_request", decodeProblem(t, body).Type)
	assert.Equal(t, []string{"positions is required"}, decodeProblem(t, body).Errors)

	status, body = do(t, app, http.MethodPost, "/flows/flow-1/totals", nil)
	require.Equal(t, http.StatusOK, status)

	var totals services.FlowTotals
	require.NoError(t, json.Unmarshal(body, &totals))
	assert.Equal(t, "15", totals.TotalCost.String())
	assert.Equal(t, "45", totals.TotalTimeMinutes.String())

	status, body = do(t, app, http.MethodGet, "/flows/flow-1/validation", nil)
	require.Equal(t, http.StatusOK, status)

	var report map[string]any
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, true, report["is_valid"])

	status, body = do(t, app, http.MethodPost, "/flows/flow-1/duplicate", nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	var duplicated services.FlowSaveResult
	require.NoError(t, json.Unmarshal(body, &duplicated))
	assert.Equal(t, 3, duplicated.Flow.Version)
	assert.Equal(t, "T-shirt v3", duplicated.Flow.Name)
	assert.False(t, duplicated.Flow.IsCurrent)

	status, _ = do(t, app, http.MethodGet, "/flows/flow-missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_DeleteFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, _ := do(t, app, http.MethodDelete, "/flows/flow-draft", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body := do(t, app, http.MethodDelete, "/flows/flow-1", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", decodeProblem(t, body).Type)

	status, body = do(t, app, http.MethodDelete, "/flows/flow-draft", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "flow_not_found", decodeProblem(t, body).Type)
}

func TestAPIHandlers_SaveFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		payload        string
		expectedStatus int
		expectedType   string
	}{
		{
			name: "valid graph",
			payload: `{"name": "Editor flow", "nodes": [
				{"id": "a", "position": {"x": 0, "y": 0}, "data": {"process_id": "proc-cut", "is_start": true}},
				{"id": "b", "position": {"x": 300, "y": 0}, "data": {"process_id": "proc-sew", "is_end": true}}
			], "edges": [{"id": "e1", "source": "a", "target": "b"}]}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing nodes",
			payload:        `{"name": "Editor flow", "edges": []}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "invalid_payload",
		},
		{
			name: "unknown process",
			payload: `{"name": "Editor flow", "nodes": [
				{"id": "a", "position": {"x": 0, "y": 0}, "data": {"process_id": "proc-missing"}}
			], "edges": []}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "invalid_payload",
		},
		{
			name:           "empty body",
			payload:        "",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/styles/style-1/flows", tt.payload)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				p := decodeProblem(t, body)
				assert.Equal(t, tt.expectedType, p.Type)

				if tt.expectedStatus == http.StatusUnprocessableEntity {
					assert.NotEmpty(t, p.Errors)
				}

				return
			}

			var result services.FlowSaveResult
			require.NoError(t, json.Unmarshal(body, &result))
			assert.Equal(t, models.FlowStatusDraft, result.Flow.Status)
			assert.Len(t, result.Flow.Nodes, 2)
			assert.Len(t, result.Flow.Edges, 1)
			assert.True(t, result.Validation.IsValid)
			assert.Equal(t, "15", result.Flow.TotalCost.String())
		})
	}
}
