package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestNewPagination(t *testing.T) {
	assert.Equal(t, &Pagination{Page: 1, PerPage: 20, TotalItems: 41, TotalPages: 3}, NewPagination(1, 20, 41))
	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}

func TestFailEnvelopeCarriesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrInvalidContent, map[string]string{"question": "4"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrInvalidContent, body.Error.Code)
	assert.Equal(t, "4", body.Error.Fields["question"])
	assert.Equal(t, "abc-123", body.Metadata.RequestID)
}

func TestOversizedRequestIDReplaced(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { Success(c, http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 500))
	r.ServeHTTP(w, req)

	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []ErrCode{
		ErrInvalidCredentials, ErrTokenRequired, ErrTokenInvalid, ErrTokenRevoked,
		ErrForbidden, ErrInstituteOnly, ErrAdminAccessOnly, ErrStudentAccessOnly, ErrNotExamOwner,
		ErrValidation, ErrInvalidID, ErrInvalidPayload, ErrInvalidContent,
		ErrNotFound, ErrConflict,
		ErrAlreadyDecided, ErrNotApproved, ErrExamNotStarted, ErrAlreadyAttempted,
		ErrNoActiveSession, ErrDeadlinePassed, ErrResultsNotReleased, ErrIntegrity, ErrCorruptContent,
		ErrFileRequired, ErrUnsupportedFile, ErrFileTooLarge,
		ErrRateLimitExceeded, ErrUpstreamUnavailable, ErrInternal,
	}
	fallback := GetMessage("nope")
	for _, c := range codes {
		assert.NotEqual(t, fallback, GetMessage(c), string(c))
	}
}
