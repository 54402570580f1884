package files

import (
	"net/http"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// statusOf maps an error code to its HTTP status.
func statusOf(code model.ErrorCode) int {
	switch code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeCorruptRecord:
		return http.StatusGone
	case model.ErrCodeStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err without leaking store details to the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	detail := errorDetail{Code: "INTERNAL", Message: "internal error"}
	status := http.StatusInternalServerError
	if typed, ok := model.AsError(err); ok {
		detail = errorDetail{Code: string(typed.Code), Message: typed.Message, Retryable: typed.Retryable}
		status = statusOf(typed.Code)
	}

	logger := h.svc.LoggerFromContext(c)
	if status >= http.StatusInternalServerError {
		logger.Error("file request failed", zap.Error(err), zap.Int("status", status))
	} else {
		logger.Debug("file request rejected", zap.Error(err), zap.Int("status", status))
	}

	c.AbortWithStatusJSON(status, errorBody{Error: detail})
}
