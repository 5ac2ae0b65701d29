package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/identity/internal/common"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// statusFor maps service errors to HTTP status codes and client-safe
// messages. Anything unrecognized becomes a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, common.ErrDuplicateEmail.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized, common.ErrInvalidOrExpiredToken.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound, common.ErrUserNotFound.Error()
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, common.ErrStorageUnavailable.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
	}
	abort(c, code, msg)
}

func abort(c *gin.Context, code int, msgs ...string) {
	c.AbortWithStatusJSON(code, errorResponse{Success: false, Errors: msgs})
}
