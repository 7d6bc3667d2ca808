package web

import (
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) ResolveBom(c fiber.Ctx) error {
	var query BomResolveQuery
	if err := c.Bind().Query(&query); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if err := h.validator.Struct(query); err != nil {
		return invalidRequest(c, err)
	}

	resolution, err := h.bomService.ResolveForVariant(c.Context(), c.Params("id"), query.SizeID, query.ColorID, query.Pieces)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resolution)
}

func (h *APIHandlers) GetBomStatistics(c fiber.Ctx) error {
	stats, err := h.bomService.Statistics(c.Context(), c.Params("id"), c.Query("size_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) ReplaceBom(c fiber.Ctx) error {
	var req ReplaceBomRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	lines, err := h.bomService.ReplaceLines(c.Context(), c.Params("id"), req.Lines)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"style_id": c.Params("id"),
		"lines":    lines,
	})
}
