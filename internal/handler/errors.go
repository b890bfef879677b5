package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
	"go.uber.org/zap"
)

const msgInternal = "Something went wrong"

func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metric label for the result of an operation
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch domain.KindOf(err) {
	case domain.KindBadRequest:
		return "bad_request"
	case domain.KindUnauthorized:
		return "unauthorized"
	case domain.KindNotFound:
		return "not_found"
	case domain.KindTooManyRequests:
		return "too_many_requests"
	default:
		return "error"
	}
}

// respondError writes a domain error with its status. Anything else is
// logged and reported as a generic 500 so internals never leak.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindUnknown {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   kind.String(),
			Message: msgInternal,
		})
		return
	}

	c.JSON(statusOf(kind), dto.ErrorResponse{
		Error:   kind.String(),
		Message: err.Error(),
	})
}

// respondBadBody writes the 400 for a body that failed to bind
func respondBadBody(c *gin.Context, err error) {
	message, details := bindingFailure(err)
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   domain.KindBadRequest.String(),
		Message: message,
		Details: details,
	})
}
