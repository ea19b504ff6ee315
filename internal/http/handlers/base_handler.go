// Package handlers holds the gin handlers for the dispatch API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"xpress/internal/modules/dispatch"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeDispatchError maps core errors to HTTP statuses. Expected race
// outcomes carry a code so clients can update state without alarming copy.
func writeDispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, dispatch.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_resolved"})
	case errors.Is(err, dispatch.ErrRequestExpired):
		c.JSON(http.StatusGone, errorResponse{Error: err.Error(), Code: "expired"})
	case errors.Is(err, dispatch.ErrIneligibleDriver):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "ineligible_driver"})
	case errors.Is(err, dispatch.ErrMaterializationFailed):
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "materialization_failed"})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
