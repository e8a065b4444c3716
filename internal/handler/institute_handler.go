package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/validator"
)

const formOverheadBytes = 64 << 10

// InstituteHandler handles the institute portal: uploads, exam mode,
// results.
type InstituteHandler struct {
	exams          ExamRequestService
	sessions       ExamSessionService
	log            zerolog.Logger
	maxUploadBytes int64
}

// NewInstituteHandler creates a new InstituteHandler.
func NewInstituteHandler(exams ExamRequestService, sessions ExamSessionService, log zerolog.Logger, maxUploadBytes int64) *InstituteHandler {
	return &InstituteHandler{
		exams:          exams,
		sessions:       sessions,
		log:            log.With().Str("component", "institute_handler").Logger(),
		maxUploadBytes: maxUploadBytes,
	}
}

// SubmitExam godoc
// POST /api/v1/institute/exams
// Multipart upload of a JSON question bank with exam metadata.
func (h *InstituteHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)

	// Form fields ride alongside the file, so allow a little headroom.
	limit := h.maxUploadBytes + formOverheadBytes
	if c.Request.ContentLength > limit {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var meta model.SubmitExamRequest
	if fields := validator.BindForm(c, &meta); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	if fh.Size > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}
	if !isJSONUpload(fh.Filename, fh.Header.Get("Content-Type")) {
		response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	req, err := h.exams.Submit(c.Request.Context(), claims.UserID, meta, raw)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": req})
}

func isJSONUpload(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "application/json")
}

// ListExams godoc
// GET /api/v1/institute/exams
// Lists the institute's own exam requests, newest first.
func (h *InstituteHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	page, perPage := pageParams(c)

	items, total, err := h.exams.ListByInstitute(c.Request.Context(), claims.UserID, page, perPage)
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
// GET /api/v1/institute/exams/:id
func (h *InstituteHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	req, err := h.exams.Get(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": req})
}

// GetKey godoc
// GET /api/v1/institute/exams/:id/key
// Returns the published handle and its decryption key to the owner.
func (h *InstituteHandler) GetKey(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	handle, key, err := h.exams.PublishedKey(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	response.Success(c, http.StatusOK, gin.H{
		"handle": handle,
		"key":    key,
	})
}

// SetExamMode godoc
// PUT /api/v1/institute/exams/:id/exam-mode
// Opens or closes an approved exam to students.
func (h *InstituteHandler) SetExamMode(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.ExamModeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.SetExamMode(c.Request.Context(), id, claims.UserID, *req.Enabled)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ReleaseResults godoc
// POST /api/v1/institute/exams/:id/release
// Makes results visible to students and emails those who completed.
func (h *InstituteHandler) ReleaseResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.exams.Release(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"release": report})
}

// ListResults godoc
// GET /api/v1/institute/exams/:id/results
// Lists every student attempt at the exam.
func (h *InstituteHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	rows, err := h.sessions.ListForExam(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if rows == nil {
		rows = []model.SessionResult{}
	}

	response.Success(c, http.StatusOK, gin.H{"results": rows})
}
