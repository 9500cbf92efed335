package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/service"
	"github.com/noah-isme/sma-results-api/internal/utils"
)

// ResultHandler manages grade submission and result listing endpoints.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(svc service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: svc,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// RegisterSubmission attaches the grade submission route.
func (h *ResultHandler) RegisterSubmission(router fiber.Router) {
	router.Post("/results", h.submit)
}

// RegisterListing attaches the exam result listing route.
func (h *ResultHandler) RegisterListing(router fiber.Router) {
	router.Get("/exam/:examId", h.listByExam)
}

func (h *ResultHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.SubmitGrade(serviceContext(c), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "result submitted", result)
}

func (h *ResultHandler) listByExam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	showUnverified := false
	if raw := c.Query("show_unverified"); raw != "" {
		parsed, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid show_unverified value")
		}
		showUnverified = parsed
	}

	results, err := h.service.ListByExam(serviceContext(c), examID, showUnverified)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrDuplicateSubmission):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrScoreExceedsTotal):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.Is(err, service.ErrNotApprover):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
