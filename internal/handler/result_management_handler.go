package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sma-results-api/internal/dto"
	"github.com/noah-isme/sma-results-api/internal/service"
	"github.com/noah-isme/sma-results-api/internal/utils"
)

// ResultManagementHandler exposes the exam officer surface: the pending
// queue, approval decisions, the update request queue, publication and
// verification.
type ResultManagementHandler struct {
	approvals   service.ApprovalService
	updates     service.UpdateRequestService
	publication service.PublicationService
	results     service.ResultService
	audit       service.AuditService
	logger      zerolog.Logger
}

// NewResultManagementHandler builds the result management handler.
func NewResultManagementHandler(approvals service.ApprovalService, updates service.UpdateRequestService, publication service.PublicationService, results service.ResultService, audit service.AuditService, logger zerolog.Logger) *ResultManagementHandler {
	return &ResultManagementHandler{
		approvals:   approvals,
		updates:     updates,
		publication: publication,
		results:     results,
		audit:       audit,
		logger:      logger.With().Str("component", "result_management_handler").Logger(),
	}
}

// RegisterOfficer attaches the routes requiring the approval capability.
func (h *ResultManagementHandler) RegisterOfficer(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/pending-grades", withGuards(guards, h.listPending)...)
	router.Post("/approve/:id", withGuards(guards, h.approve)...)
	router.Post("/reject/:id", withGuards(guards, h.reject)...)
	router.Get("/update-requests", withGuards(guards, h.listUpdateRequests)...)
	router.Post("/approve-update/:id", withGuards(guards, h.approveUpdate)...)
	router.Post("/reject-update/:id", withGuards(guards, h.rejectUpdate)...)
	router.Post("/publish", withGuards(guards, h.publish)...)
	router.Post("/unpublish", withGuards(guards, h.unpublish)...)
	router.Patch("/verify/:id", withGuards(guards, h.verify)...)
}

// RegisterTeacher attaches the routes available to submitting teachers.
func (h *ResultManagementHandler) RegisterTeacher(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/update-requests", withGuards(guards, h.requestUpdate)...)
}

// RegisterAdmin attaches the audit trail route.
func (h *ResultManagementHandler) RegisterAdmin(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/audit", withGuards(guards, h.listAudit)...)
}

func (h *ResultManagementHandler) listPending(c *fiber.Ctx) error {
	filter := dto.PendingGradeFilter{}
	if examID, err := parseQueryUint(c, "exam_id"); err == nil && examID != nil {
		filter.ExamID = examID
	}
	if subjectID, err := parseQueryUint(c, "subject_id"); err == nil && subjectID != nil {
		filter.SubjectID = subjectID
	}

	results, err := h.approvals.ListPending(serviceContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "pending grades retrieved", results)
}

func (h *ResultManagementHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.approvals.Approve(serviceContext(c), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result approved", result)
}

func (h *ResultManagementHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RejectResultRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.approvals.Reject(serviceContext(c), id, payload.Reason, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result rejected", result)
}

func (h *ResultManagementHandler) requestUpdate(c *fiber.Ctx) error {
	var payload dto.RequestUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	request, err := h.updates.Request(serviceContext(c), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "update request created", request)
}

func (h *ResultManagementHandler) listUpdateRequests(c *fiber.Ctx) error {
	filter := dto.UpdateRequestFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	requests, err := h.updates.List(serviceContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "update requests retrieved", requests)
}

func (h *ResultManagementHandler) approveUpdate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.updates.ApproveUpdate(serviceContext(c), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "update request approved", result)
}

func (h *ResultManagementHandler) rejectUpdate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RejectUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	request, err := h.updates.RejectUpdate(serviceContext(c), id, payload.Reason, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "update request rejected", request)
}

func (h *ResultManagementHandler) publish(c *fiber.Ctx) error {
	var payload dto.PublishResultsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.publication.Publish(serviceContext(c), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results published", response)
}

func (h *ResultManagementHandler) unpublish(c *fiber.Ctx) error {
	var payload dto.PublishResultsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.publication.Unpublish(serviceContext(c), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results unpublished", response)
}

func (h *ResultManagementHandler) verify(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.VerifyResultRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.results.SetVerified(serviceContext(c), id, payload.Verified, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "verification updated", result)
}

func (h *ResultManagementHandler) listAudit(c *fiber.Ctx) error {
	req := dto.AuditListRequest{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}
	if page, err := parseQueryInt(c, "page"); err == nil {
		req.Page = page
	}
	if pageSize, err := parseQueryInt(c, "page_size"); err == nil {
		req.PageSize = pageSize
	}
	if actorID, err := parseQueryUint(c, "actor_id"); err == nil && actorID != nil {
		req.ActorID = *actorID
	}

	response, err := h.audit.List(serviceContext(c), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "audit entries retrieved", response)
}

func (h *ResultManagementHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.Is(err, service.ErrUpdateRequestNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "update request not found")
	case errors.Is(err, service.ErrNotApprover):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrResultNotApproved):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReasonRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrScoreExceedsTotal):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
