package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/validator"
)

// StudentHandler handles the student portal: taking exams and reading
// released results.
type StudentHandler struct {
	sessions ExamSessionService
	log      zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(sessions ExamSessionService, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		sessions: sessions,
		log:      log.With().Str("component", "student_handler").Logger(),
	}
}

// submitReceipt confirms a submission without revealing the score.
type submitReceipt struct {
	SessionID   string              `json:"session_id"`
	Status      model.SessionStatus `json:"status"`
	SubmittedAt *time.Time          `json:"submitted_at"`
	Answered    int                 `json:"answered"`
}

// StartExam godoc
// POST /api/v1/student/exams/:handle/start
// Begins (or resumes) the student's single attempt and returns the
// questions without their answers.
func (h *StudentHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	started, err := h.sessions.Start(c.Request.Context(), claims.UserID, c.Param("handle"))
	if err != nil {
		failService(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if started.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"exam": started})
}

// SubmitAnswers godoc
// POST /api/v1/student/sessions/:id/submit
func (h *StudentHandler) SubmitAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessions.Submit(c.Request.Context(), id, claims.UserID, req.Answers)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": submitReceipt{
		SessionID:   sess.ID.String(),
		Status:      sess.Status,
		SubmittedAt: sess.SubmittedAt,
		Answered:    len(sess.Answers),
	}})
}

// ListSessions godoc
// GET /api/v1/student/sessions
// Lists the student's attempts; scores appear only once released.
func (h *StudentHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	rows, err := h.sessions.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if rows == nil {
		rows = []model.SessionResult{}
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": rows})
}

// GetResult godoc
// GET /api/v1/student/sessions/:id/result
func (h *StudentHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	res, err := h.sessions.Result(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}
