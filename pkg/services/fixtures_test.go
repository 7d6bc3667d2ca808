package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/mocks"
	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence/file"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// The fixture style POLO has a two line BOM and a four node flow:
//
//	yarn: 2 per unit, scaled by size, 2.5 each
//	dye:  0.5 per unit, 10 each plus a 2 surcharge for red, critical with stock 5
//	cut (start, 10 / 30min, 10% waste) -> print (parallel, 5 / 20min)
//	  -> embroidery (parallel, 8 / 40min) -> sew (end, 7 / 15min, requires color)
//
// For size M (1.15), red, 10 pieces: materials 11.75 per unit, processes 31 per unit,
// time 33 + 40 + 15 = 88 minutes.
const (
	styleID   = "style-polo"
	emptyID   = "style-empty"
	colorID   = "color-red"
	sizeID    = "size-m"
	smallID   = "size-s"
	flowID    = "flow-polo-1"
	yarnID    = "mat-yarn"
	dyeID     = "mat-dye"
	cutNodeID = "node-cut"
	sewNodeID = "node-sew"
)

var silentLogger = slog.New(slog.DiscardHandler)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	seedCatalog(t, p)

	return p
}

func newPublisher() *mocks.MockEventBus {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return bus
}

func seedCatalog(t *testing.T, p *file.Persistence) {
	t.Helper()

	ctx := t.Context()
	catalog := p.CatalogRepository()

	require.NoError(t, catalog.SaveStyle(ctx, &models.Style{
		ID: styleID, Code: "polo", Name: "Polo", TargetCost: decimal.NewNullDecimal(dec("400")),
		TargetTimeMinutes: decimal.NewNullDecimal(dec("60")),
	}))
	require.NoError(t, catalog.SaveStyle(ctx, &models.Style{ID: emptyID, Code: "TEE", Name: "T-shirt"}))
	require.NoError(t, catalog.SaveColor(ctx, &models.Color{ID: colorID, Name: "Red", HexCode: "#FF0000"}))
	require.NoError(t, catalog.SaveSize(ctx, &models.Size{ID: sizeID, Code: "M", Name: "Medium", QuantityMultiplier: decimal.NewNullDecimal(dec("1.15"))}))
	require.NoError(t, catalog.SaveSize(ctx, &models.Size{ID: smallID, Code: "S", Name: "Small"}))

	require.NoError(t, catalog.SaveMaterial(ctx, &models.Material{
		ID: yarnID, Code: "YRN", Name: "Cotton yarn", UnitCost: dec("2.5"), Stock: dec("100"),
		Kind: models.MaterialKindYarn, Status: models.StatusActive,
	}))
	require.NoError(t, catalog.SaveMaterial(ctx, &models.Material{
		ID: dyeID, Code: "DYE", Name: "Reactive dye", UnitCost: dec("10"), Stock: dec("5"), IsCritical: true,
		Kind: models.MaterialKindDye, Status: models.StatusActive,
	}))
	require.NoError(t, catalog.SaveColorCost(ctx, &models.MaterialColorCost{
		MaterialID: dyeID, ColorID: colorID, AdditionalCost: decimal.NewNullDecimal(dec("2")),
	}))

	processes := []*models.Process{
		{ID: "proc-cut", Code: "CUT", Name: "Cutting", BaseCost: dec("10"), BaseTimeMinutes: dec("30"), WastePercentage: dec("10")},
		{ID: "proc-print", Code: "PRT", Name: "Printing", BaseCost: dec("5"), BaseTimeMinutes: dec("20"), IsParallel: true},
		{ID: "proc-embroidery", Code: "EMB", Name: "Embroidery", BaseCost: dec("8"), BaseTimeMinutes: dec("40"), IsParallel: true},
		{ID: "proc-sew", Code: "SEW", Name: "Sewing", BaseCost: dec("7"), BaseTimeMinutes: dec("15"), RequiresColor: true},
	}
	for _, process := range processes {
		require.NoError(t, catalog.SaveProcess(ctx, process))
	}

	require.NoError(t, p.BomRepository().ReplaceLines(ctx, styleID, []*models.BomLine{
		{ID: "line-yarn", MaterialID: yarnID, BaseQuantity: dec("2"), AppliesToSize: true},
		{ID: "line-dye", MaterialID: dyeID, BaseQuantity: dec("0.5"), AppliesToColor: true, IsCritical: true},
	}))

	require.NoError(t, p.FlowRepository().Create(ctx, poloFlow(flowID, true, models.FlowStatusActive)))
}

func poloFlow(id string, current bool, status models.FlowStatus) *models.Flow {
	return &models.Flow{
		ID:        id,
		StyleID:   styleID,
		Name:      "Polo production",
		IsCurrent: current,
		Status:    status,
		Nodes: []*models.FlowNode{
			{ID: cutNodeID, ProcessID: "proc-cut", SequenceOrder: 1, Width: 200, Height: 80, IsStart: true},
			{ID: "node-print", ProcessID: "proc-print", SequenceOrder: 2, Width: 200, Height: 80},
			{ID: "node-embroidery", ProcessID: "proc-embroidery", SequenceOrder: 3, Width: 200, Height: 80},
			{ID: sewNodeID, ProcessID: "proc-sew", SequenceOrder: 4, Width: 200, Height: 80, IsEnd: true},
		},
		Edges: []*models.FlowEdge{
			{ID: "edge-1", OriginNodeID: cutNodeID, DestinationNodeID: "node-print", Type: models.ConnectionSequential, Priority: 1},
			{ID: "edge-2", OriginNodeID: "node-print", DestinationNodeID: "node-embroidery", Type: models.ConnectionParallel, Priority: 1},
			{ID: "edge-3", OriginNodeID: "node-embroidery", DestinationNodeID: sewNodeID, Type: models.ConnectionSequential, Priority: 1},
		},
	}
}

// memoryCache is an in-process cache.Cache used to observe what services cache.
type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.values[key]
	if !ok {
		return cache.ErrMiss
	}

	return json.Unmarshal(data, v)
}

func (c *memoryCache) Set(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = data

	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.values, k)
	}

	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.values[key]

	return ok
}

func (c *memoryCache) HealthCheck(context.Context) error {
	return nil
}

func (c *memoryCache) Close() error {
	return nil
}
