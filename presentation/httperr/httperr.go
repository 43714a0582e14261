package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/lobby/domain/apperror"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Status maps an error kind to its HTTP status.
func Status(err error) int {
	switch apperror.KindOf(err) {
	case apperror.Validation:
		return http.StatusBadRequest
	case apperror.Unauthorized:
		return http.StatusForbidden
	case apperror.NotFound:
		return http.StatusNotFound
	case apperror.Conflict:
		return http.StatusConflict
	case apperror.CodeGenerationExhausted, apperror.TransientStore:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Respond writes err as a JSON error body and records it on the gin context.
// The body carries only the message of the first *apperror.Error in the
// chain; wrapped causes stay in the logs.
func Respond(ctx *gin.Context, err error) {
	status := Status(err)

	code := "internal_error"
	message := "internal server error"
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		code = string(appErr.Kind)
		message = appErr.Message
	}

	_ = ctx.Error(err)
	ctx.JSON(status, ErrorResponse{Error: code, Message: message})
}

func BadRequest(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}
