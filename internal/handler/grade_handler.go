package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/middleware"
	"github.com/unza-cs/grading-api/internal/service"
	"github.com/unza-cs/grading-api/internal/utils"
)

// GradeHandler wires grade aggregation and review HTTP routes.
type GradeHandler struct {
	grading   service.GradingService
	batch     service.BatchService
	policy    service.GradingPolicy
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(grading service.GradingService, batch service.BatchService, policy service.GradingPolicy, validator *validator.Validate, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		grading:   grading,
		batch:     batch,
		policy:    policy,
		validator: validator,
		logger:    logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches grade endpoints to the router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Post("/aggregate", h.aggregate)
	router.Post("/batch", h.batchRun)
	router.Get("/:assignmentID/summary", h.summary)
	router.Get("/:assignmentID/export", h.export)
	router.Get("/:assignmentID/:studentID", h.get)
	router.Post("/:assignmentID/:studentID/override", h.override)
	router.Post("/:assignmentID/:studentID/signoff", h.signOff)
}

func (h *GradeHandler) aggregate(c *fiber.Ctx) error {
	var payload dto.AggregateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.grading.Aggregate(c.Context(), payload, h.policy)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade aggregated", response)
}

func (h *GradeHandler) batchRun(c *fiber.Ctx) error {
	var payload dto.BatchRunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.batch.Run(c.Context(), payload, h.policy)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batch run completed", response)
}

func (h *GradeHandler) get(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	response, err := h.grading.Get(c.Context(), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade retrieved", response)
}

func (h *GradeHandler) override(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	var payload dto.GradeOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.grading.Override(c.Context(), assignmentID, studentID, payload, middleware.Actor(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade overridden", response)
}

func (h *GradeHandler) signOff(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	response, err := h.grading.SignOff(c.Context(), assignmentID, studentID, middleware.Actor(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade signed off", response)
}

func (h *GradeHandler) summary(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}

	response, err := h.grading.Summary(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade summary retrieved", response)
}

func (h *GradeHandler) export(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}

	records, err := h.grading.ExportReady(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "export-ready grades retrieved", records)
}

func (h *GradeHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrGradeRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "grade record not found")
	case errors.Is(err, service.ErrInvalidWeights):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrTestResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "test results not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *GradeHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
