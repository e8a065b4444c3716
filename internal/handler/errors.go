package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/examvault/internal/examcontent"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/service"
)

// serviceErrors maps domain errors to HTTP status and response code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrNotOwner, http.StatusForbidden, response.ErrNotExamOwner},
	{service.ErrAlreadyDecided, http.StatusConflict, response.ErrAlreadyDecided},
	{service.ErrAlreadyAttempted, http.StatusConflict, response.ErrAlreadyAttempted},
	{service.ErrNoActiveSession, http.StatusConflict, response.ErrNoActiveSession},
	{service.ErrDeadlinePassed, http.StatusConflict, response.ErrDeadlinePassed},
	{service.ErrNotApproved, http.StatusConflict, response.ErrNotApproved},
	{service.ErrExamNotStarted, http.StatusForbidden, response.ErrExamNotStarted},
	{service.ErrResultsNotReleased, http.StatusForbidden, response.ErrResultsNotReleased},
	{service.ErrIntegrity, http.StatusInternalServerError, response.ErrIntegrity},
	{service.ErrCorruptContent, http.StatusBadGateway, response.ErrCorruptContent},
	{service.ErrUpstreamUnavailable, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
}

// failService translates a service error into the response envelope.
// Unmapped errors are logged and surface as INTERNAL_ERROR.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	var ve *examcontent.ValidationError
	if errors.As(err, &ve) {
		fields := map[string]string{"reason": ve.Error()}
		if ve.Index > 0 {
			fields["question"] = strconv.Itoa(ve.Index)
		}
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrInvalidContent, fields)
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}

	log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString(response.ContextKeyRequestID)).
		Msg("Unhandled error")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// paramUUID parses a UUID path parameter, writing INVALID_ID on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page/per_page with the defaults and bounds every list
// endpoint shares.
func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
