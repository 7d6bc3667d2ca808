package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukex/costura/pkg/models"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// StyleBom is the bill of materials of one style in a catalog file.
type StyleBom struct {
	StyleID string                  `json:"style_id" validate:"required"`
	Lines   []services.BomLineInput `json:"lines"    validate:"dive"`
}

// StyleFlow is an editor graph to store for a style, optionally activated and made current.
type StyleFlow struct {
	StyleID  string          `json:"style_id" validate:"required"`
	Editor   json.RawMessage `json:"editor"   validate:"required"`
	Activate bool            `json:"activate"`
	Promote  bool            `json:"promote"`
}

// CatalogFile is the document accepted by the import command.
type CatalogFile struct {
	Styles     []*models.Style             `json:"styles"      validate:"dive"`
	Colors     []*models.Color             `json:"colors"      validate:"dive"`
	Sizes      []*models.Size              `json:"sizes"       validate:"dive"`
	Materials  []*models.Material          `json:"materials"   validate:"dive"`
	Processes  []*models.Process           `json:"processes"   validate:"dive"`
	ColorCosts []*models.MaterialColorCost `json:"color_costs"`
	Boms       []StyleBom                  `json:"boms"        validate:"dive"`
	Flows      []StyleFlow                 `json:"flows"       validate:"dive"`
}

// ImportSummary counts what an import stored.
type ImportSummary struct {
	Styles     int `json:"styles"`
	Colors     int `json:"colors"`
	Sizes      int `json:"sizes"`
	Materials  int `json:"materials"`
	Processes  int `json:"processes"`
	ColorCosts int `json:"color_costs"`
	BomLines   int `json:"bom_lines"`
	Flows      int `json:"flows"`
}

func readCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog CatalogFile

	err = json.Unmarshal(data, &catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return &catalog, nil
}

// importCatalog stores the catalog records first, then the BOMs and flows that reference them.
func importCatalog(ctx context.Context, p persistence.Persistence, catalog *CatalogFile, logger *slog.Logger) (*ImportSummary, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	err := validate.Struct(catalog)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file: %w", err)
	}

	repo := p.CatalogRepository()
	summary := &ImportSummary{}

	for _, style := range catalog.Styles {
		if style.ID == "" {
			style.ID = uuid.NewString()
		}

		if err := repo.SaveStyle(ctx, style); err != nil {
			return summary, fmt.Errorf("failed to save style %s: %w", style.Code, err)
		}

		summary.Styles++
	}

	for _, color := range catalog.Colors {
		if color.ID == "" {
			color.ID = uuid.NewString()
		}

		if err := repo.SaveColor(ctx, color); err != nil {
			return summary, fmt.Errorf("failed to save color %s: %w", color.Name, err)
		}

		summary.Colors++
	}

	for _, size := range catalog.Sizes {
		if size.ID == "" {
			size.ID = uuid.NewString()
		}

		if err := repo.SaveSize(ctx, size); err != nil {
			return summary, fmt.Errorf("failed to save size %s: %w", size.Code, err)
		}

		summary.Sizes++
	}

	for _, material := range catalog.Materials {
		if material.ID == "" {
			material.ID = uuid.NewString()
		}

		if err := repo.SaveMaterial(ctx, material); err != nil {
			return summary, fmt.Errorf("failed to save material %s: %w", material.Code, err)
		}

		summary.Materials++
	}

	for _, process := range catalog.Processes {
		if process.ID == "" {
			process.ID = uuid.NewString()
		}

		if err := repo.SaveProcess(ctx, process); err != nil {
			return summary, fmt.Errorf("failed to save process %s: %w", process.Code, err)
		}

		summary.Processes++
	}

	for _, cost := range catalog.ColorCosts {
		if err := repo.SaveColorCost(ctx, cost); err != nil {
			return summary, fmt.Errorf("failed to save color cost %s/%s: %w", cost.MaterialID, cost.ColorID, err)
		}

		summary.ColorCosts++
	}

	boms := services.NewBom(p, logger)

	for _, bom := range catalog.Boms {
		lines, err := boms.ReplaceLines(ctx, bom.StyleID, bom.Lines)
		if err != nil {
			return summary, fmt.Errorf("failed to import bom of style %s: %w", bom.StyleID, err)
		}

		summary.BomLines += len(lines)
	}

	flows := services.NewFlow(p, nil, logger)

	for i, in := range catalog.Flows {
		result, err := flows.SaveFromEditor(ctx, in.StyleID, in.Editor)
		if err != nil {
			return summary, fmt.Errorf("failed to import flow %d of style %s: %w", i+1, in.StyleID, err)
		}

		if in.Activate || in.Promote {
			if _, err := flows.Activate(ctx, result.Flow.ID); err != nil {
				return summary, fmt.Errorf("failed to activate flow %s: %w", result.Flow.ID, err)
			}
		}

		if in.Promote {
			if _, err := flows.PromoteToCurrent(ctx, result.Flow.ID); err != nil {
				return summary, fmt.Errorf("failed to promote flow %s: %w", result.Flow.ID, err)
			}
		}

		summary.Flows++
	}

	logger.InfoContext(ctx, "Catalog imported",
		"styles", summary.Styles, "materials", summary.Materials, "processes", summary.Processes,
		"bom_lines", summary.BomLines, "flows", summary.Flows)

	return summary, nil
}
