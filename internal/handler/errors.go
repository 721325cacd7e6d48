package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/preview"
	"github.com/CageChen/finderhub/internal/session"
)

// ErrorResponse is the body of every failed API call. Kind lets the client
// choose a recovery: pick another root, go back, or download instead.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, fs.ErrPathNotFound),
		errors.Is(err, session.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrNoAccess), errors.Is(err, session.ErrColumnsOutdated):
		return http.StatusConflict
	case errors.Is(err, fs.ErrReadFailed):
		return http.StatusBadGateway
	case errors.Is(err, preview.ErrNotPreviewable), errors.Is(err, fs.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func kindFor(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "sessionNotFound"
	case errors.Is(err, preview.ErrNotPreviewable):
		return "notPreviewable"
	}
	return session.ErrorKind(err)
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), ErrorResponse{Error: err.Error(), Kind: kindFor(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: "badRequest"})
}
