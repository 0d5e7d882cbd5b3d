package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/lessonpath/internal/apperr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound, apperr.KindIntegrity:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidArgument, apperr.KindInvalidState,
		apperr.KindUpstreamUnavailable, apperr.KindUnknownConfiguration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body. Unclassified errors are reported as
// internal without their text.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Error:   apperr.KindInternal.String(),
			Message: "internal error",
		})
		return
	}
	c.AbortWithStatusJSON(statusFor(ae.Kind), errorBody{
		Error:   ae.Kind.String(),
		Message: ae.Msg,
	})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperr.InvalidArgument(msg))
}
