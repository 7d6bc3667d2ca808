// Package web provides HTTP request and response types for the costing API.
package web

import (
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
)

// ReplaceBomRequest represents the request body replacing the active bill of materials of a style.
type ReplaceBomRequest struct {
	Lines []services.BomLineInput `json:"lines" validate:"required,min=1,dive"`
}

// UpdatePositionsRequest represents the editor coordinates of the nodes that moved.
type UpdatePositionsRequest struct {
	Positions []persistence.NodePosition `json:"positions" validate:"required,min=1,dive"`
}

// BomResolveQuery represents the query parameters of a bill of materials resolution.
type BomResolveQuery struct {
	SizeID  string `query:"size_id"  validate:"required"`
	ColorID string `query:"color_id"`
	Pieces  int    `query:"pieces"   validate:"gte=0"`
}

// HistoryQuery represents the query parameters selecting a variant.
type HistoryQuery struct {
	ColorID string `query:"color_id" validate:"required"`
	SizeID  string `query:"size_id"  validate:"required"`
}

// CompareQuery represents the query parameters of a calculation comparison.
type CompareQuery struct {
	Base  string `query:"base"  validate:"required"`
	Other string `query:"other" validate:"required"`
}
