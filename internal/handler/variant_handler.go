package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/service"
	"github.com/unza-cs/grading-api/internal/utils"
	"github.com/unza-cs/grading-api/internal/variant"
)

// VariantHandler wires variant HTTP routes.
type VariantHandler struct {
	service   service.VariantService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewVariantHandler constructs the handler.
func NewVariantHandler(service service.VariantService, validator *validator.Validate, logger zerolog.Logger) *VariantHandler {
	return &VariantHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "variant_handler").Logger(),
	}
}

// Register attaches variant endpoints to the router group.
func (h *VariantHandler) Register(router fiber.Router) {
	router.Post("", h.getOrCreate)
	router.Get("/:assignmentID/:studentID", h.get)
	router.Post("/:assignmentID/:studentID/verify", h.verify)
}

func (h *VariantHandler) getOrCreate(c *fiber.Ctx) error {
	var payload dto.VariantRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	response, err := h.service.GetOrCreate(c.Context(), payload.AssignmentID, payload.StudentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "variant retrieved", response)
}

func (h *VariantHandler) get(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	response, err := h.service.Get(c.Context(), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "variant retrieved", response)
}

func (h *VariantHandler) verify(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}
	studentID, err := pathParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "student id required")
	}

	verifyErr := h.service.Verify(c.Context(), assignmentID, studentID)
	if verifyErr != nil && !errors.Is(verifyErr, service.ErrVariantDrift) {
		return h.handleError(c, verifyErr)
	}

	response := dto.VariantVerifyResponse{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Verified:     verifyErr == nil,
	}
	if verifyErr != nil {
		return utils.SendSuccessWithStatus(c, fiber.StatusConflict, "variant drift detected", response)
	}

	return utils.SendSuccess(c, "variant verified", response)
}

func (h *VariantHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSchemaNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "schema not found")
	case errors.Is(err, service.ErrSchemaUnpublished):
		return utils.SendError(c, fiber.StatusConflict, "schema not published")
	case errors.Is(err, service.ErrVariantNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "variant not found")
	case errors.Is(err, variant.ErrInvalidIdentifier):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, variant.ErrInvalidSchema):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *VariantHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
