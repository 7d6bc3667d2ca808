package web

import (
	"errors"

	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// violationProblem is a problem carrying the list of broken rules.
type violationProblem struct {
	*problems.Problem

	Errors []string `json:"errors"`
}

var notFoundTypes = []struct {
	err         error
	problemType string
}{
	{persistence.ErrStyleNotFound, "style_not_found"},
	{persistence.ErrColorNotFound, "color_not_found"},
	{persistence.ErrSizeNotFound, "size_not_found"},
	{persistence.ErrMaterialNotFound, "material_not_found"},
	{persistence.ErrProcessNotFound, "process_not_found"},
	{persistence.ErrCurrentFlowNotFound, "current_flow_not_found"},
	{persistence.ErrFlowNotFound, "flow_not_found"},
	{persistence.ErrNodeNotFound, "node_not_found"},
	{persistence.ErrVariantNotFound, "variant_not_found"},
	{persistence.ErrCalculationNotFound, "calculation_not_found"},
	{services.ErrNoActiveBom, "bom_not_found"},
}

var violationTypes = []struct {
	err         error
	problemType string
}{
	{services.ErrInvalidRequest, "invalid_request"},
	{services.ErrInvalidPayload, "invalid_payload"},
	{services.ErrInvalidEdge, "invalid_edge"},
	{services.ErrInvalidBom, "invalid_bom"},
	{services.ErrInconsistentFlow, "inconsistent_flow"},
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, err error) error {
	problemType, detail := "not_found", "resource not found"

	for _, candidate := range notFoundTypes {
		if errors.Is(err, candidate.err) {
			problemType, detail = candidate.problemType, candidate.err.Error()

			break
		}
	}

	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unprocessable(c fiber.Ctx, err error) error {
	problemType := "violation_error"

	for _, candidate := range violationTypes {
		if errors.Is(err, candidate.err) {
			problemType = candidate.problemType

			break
		}
	}

	violations, _ := services.Violations(err)
	if violations == nil {
		violations = []string{}
	}

	problem := violationProblem{
		Problem: problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType(problemType).
			WithDetail(err.Error()),
		Errors: violations,
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsViolationError(err):
		return unprocessable(c, err)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsNotFoundError(err):
		return notFound(c, err)

	default:
		return internalError(c, err)
	}
}
