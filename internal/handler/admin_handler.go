package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/validator"
)

// AdminHandler handles the review queue.
type AdminHandler struct {
	exams ExamRequestService
	log   zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(exams ExamRequestService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		exams: exams,
		log:   log.With().Str("component", "admin_handler").Logger(),
	}
}

// ListPending godoc
// GET /api/v1/admin/exams/pending
// Lists requests awaiting review, oldest first.
func (h *AdminHandler) ListPending(c *gin.Context) {
	page, perPage := pageParams(c)

	items, total, err := h.exams.ListPending(c.Request.Context(), page, perPage)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if items == nil {
		items = []model.ExamRequest{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": items}, response.NewPagination(page, perPage, total))
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
func (h *AdminHandler) GetExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	req, err := h.exams.GetForReview(c.Request.Context(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": req})
}

// Decide godoc
// POST /api/v1/admin/exams/:id/decision
// Approves (publishing the content) or rejects a pending request.
func (h *AdminHandler) Decide(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.DecisionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Decide(c.Request.Context(), id, claims.UserID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", id.String()).
		Str("reviewer_id", claims.UserID.String()).
		Str("status", string(exam.Status)).
		Msg("Exam request decided")

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
