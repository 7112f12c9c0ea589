package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/unza-cs/grading-api/internal/schema"
	"github.com/unza-cs/grading-api/internal/service"
	"github.com/unza-cs/grading-api/internal/utils"
)

// SchemaHandler wires assignment schema HTTP routes.
type SchemaHandler struct {
	service service.SchemaService
	logger  zerolog.Logger
}

// NewSchemaHandler constructs the handler.
func NewSchemaHandler(service service.SchemaService, logger zerolog.Logger) *SchemaHandler {
	return &SchemaHandler{
		service: service,
		logger:  logger.With().Str("component", "schema_handler").Logger(),
	}
}

// Register attaches schema endpoints to the router group.
func (h *SchemaHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:assignmentID", h.get)
	router.Post("", h.create)
	router.Post("/:assignmentID/publish", h.publish)
}

func (h *SchemaHandler) list(c *fiber.Ctx) error {
	schemas, err := h.service.List(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "schemas retrieved", schemas)
}

func (h *SchemaHandler) get(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}

	response, err := h.service.Get(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schema retrieved", response)
}

func (h *SchemaHandler) create(c *fiber.Ctx) error {
	response, err := h.service.Create(c.Context(), c.Body())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "schema created", response)
}

func (h *SchemaHandler) publish(c *fiber.Ctx) error {
	assignmentID, err := pathParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "assignment id required")
	}

	response, err := h.service.Publish(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schema published", response)
}

func (h *SchemaHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSchemaNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "schema not found")
	case errors.Is(err, service.ErrSchemaExists):
		return utils.SendError(c, fiber.StatusConflict, "schema already exists")
	case errors.Is(err, schema.ErrSchemaInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SchemaHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
