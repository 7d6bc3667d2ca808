// Package web provides HTTP handlers and REST API endpoints for variant costing.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	calculationService *services.Calculation
	flowService        *services.Flow
	bomService         *services.Bom
	cache              cache.Cache
	validator          *validator.Validate
}

func NewAPIHandlers(
	calculationService *services.Calculation,
	flowService *services.Flow,
	bomService *services.Bom,
	calculationCache cache.Cache,
	validator *validator.Validate,
) *APIHandlers {
	if calculationCache == nil {
		calculationCache = cache.Noop{}
	}

	return &APIHandlers{
		calculationService: calculationService,
		flowService:        flowService,
		bomService:         bomService,
		cache:              calculationCache,
		validator:          validator,
	}
}

// Register mounts every costing endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	c := router.Group("/calculations")
	c.Post("/", h.CalculateVariant)
	c.Get("/compare", h.CompareCalculations)
	c.Get("/:id", h.GetCalculation)

	s := router.Group("/styles/:id")
	s.Get("/calculations/summary", h.GetStyleSummary)
	s.Get("/variants/history", h.GetVariantHistory)
	s.Get("/bom/resolve", h.ResolveBom)
	s.Get("/bom/statistics", h.GetBomStatistics)
	s.Put("/bom", h.ReplaceBom)
	s.Get("/flows", h.GetFlows)
	s.Post("/flows", h.SaveFlow)

	f := router.Group("/flows")
	f.Get("/:id", h.GetFlow)
	f.Delete("/:id", h.DeleteFlow)
	f.Post("/:id/duplicate", h.DuplicateFlow)
	f.Post("/:id/promote", h.PromoteFlow)
	f.Post("/:id/activate", h.ActivateFlow)
	f.Post("/:id/totals", h.RefreshFlowTotals)
	f.Get("/:id/validation", h.ValidateFlow)
	f.Patch("/:id/positions", h.UpdateFlowPositions)
	f.Post("/:id/edges", h.AddFlowEdge)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	persistenceCheck, persistenceOk := h.flowService.HealthCheck(c.Context())

	cacheCheck, cacheOk := "Cache is healthy", true

	err := h.cache.HealthCheck(c.Context())
	if err != nil {
		cacheCheck, cacheOk = "Cache is unhealthy: "+err.Error(), false
	}

	status := "unhealthy"
	message := "Costura API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if persistenceOk && cacheOk {
		status = "healthy"
		message = "Costura API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
			"cache":       cacheCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CalculateVariant(c fiber.Ctx) error {
	var req services.CalculateVariantRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	breakdown, err := h.calculationService.CalculateVariant(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(breakdown)
}

func (h *APIHandlers) GetCalculation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Calculation ID is required")
	}

	summary, err := h.calculationService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) CompareCalculations(c fiber.Ctx) error {
	var query CompareQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(query); err != nil {
		return invalidRequest(c, err)
	}

	comparison, err := h.calculationService.Compare(c.Context(), query.Base, query.Other)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(comparison)
}

func (h *APIHandlers) GetStyleSummary(c fiber.Ctx) error {
	summary, err := h.calculationService.StyleSummary(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) GetVariantHistory(c fiber.Ctx) error {
	var query HistoryQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(query); err != nil {
		return invalidRequest(c, err)
	}

	history, err := h.calculationService.History(c.Context(), c.Params("id"), query.ColorID, query.SizeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(history)
}
