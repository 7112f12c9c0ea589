package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/service"
	"github.com/unza-cs/grading-api/internal/utils"
)

// ReportHandler wires test report and similarity ingest routes.
type ReportHandler struct {
	reports    service.ReportService
	similarity service.SimilarityService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports service.ReportService, similarity service.SimilarityService, validator *validator.Validate, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports:    reports,
		similarity: similarity,
		validator:  validator,
		logger:     logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches report endpoints to the router group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Post("/tests", h.ingestTests)
	router.Get("/tests/:assignmentID/:studentID", h.results)
	router.Post("/similarity", h.ingestSimilarity)
	router.Put("/roster", h.uploadRoster)
}

func (h *ReportHandler) ingestTests(c *fiber.Ctx) error {
	var payload dto.TestReportIngestRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.reports.Ingest(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "test report ingested", response)
}

func (h *ReportHandler) results(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	results, err := h.reports.Results(c.Context(), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "test results retrieved", results)
}

func (h *ReportHandler) ingestSimilarity(c *fiber.Ctx) error {
	var payload dto.SimilarityIngestRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.similarity.Ingest(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "similarity report ingested", response)
}

func (h *ReportHandler) uploadRoster(c *fiber.Ctx) error {
	var payload dto.RosterUploadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	count, err := h.similarity.UploadRoster(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "roster uploaded", fiber.Map{"entries": count})
}

func (h *ReportHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrMalformedReport):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTestResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "test results not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ReportHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
