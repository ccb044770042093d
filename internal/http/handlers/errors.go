package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bustix/internal/domain"
	"bustix/internal/http/middleware"
	"bustix/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

const retryAfterSeconds = 1

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	code := string(domain.CodeOf(err))
	switch {
	case domain.IsValidation(err):
		var ve domain.ValidationError
		errors.As(err, &ve)
		var details any
		if ve.Field != "" {
			details = gin.H{"field": ve.Field}
		}
		respondError(c, http.StatusBadRequest, code, err.Error(), details)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, code, err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, code, err.Error(), nil)
	case domain.IsConflict(err):
		var ce domain.ConflictError
		errors.As(err, &ce)
		var details any
		if ce.Current != "" {
			details = gin.H{"current_status": ce.Current}
		}
		respondError(c, http.StatusConflict, code, err.Error(), details)
	case domain.IsPolicy(err):
		var pe domain.PolicyError
		errors.As(err, &pe)
		var details any
		if pe.HoursToDeparture != nil {
			details = gin.H{"hours_to_departure": *pe.HoursToDeparture}
		}
		respondError(c, http.StatusUnprocessableEntity, code, err.Error(), details)
	case domain.IsIntegrity(err):
		respondError(c, http.StatusBadRequest, code, err.Error(), nil)
	case domain.IsRetryable(err):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		respondError(c, http.StatusServiceUnavailable, code, "temporarily unavailable, retry shortly", nil)
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, string(domain.CodeInternal), "internal error", nil)
	}
}
