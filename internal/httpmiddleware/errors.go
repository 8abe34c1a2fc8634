package httpmiddleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"photoattend/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind and its user-facing message.
type ErrorDetail struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

// NewErrorBody builds an error body.
func NewErrorBody(kind apperr.Kind, msg string) ErrorBody {
	return ErrorBody{Error: ErrorDetail{Code: kind, Message: msg}}
}

// Abort writes err as JSON with its mapped status and stops the chain.
// Unclassified errors are logged and reported without detail.
func Abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		slog.Error("request failed", "request_id", RequestID(c), "path", c.FullPath(), "err", err)
		msg = http.StatusText(http.StatusInternalServerError)
	} else if status >= 500 {
		slog.Warn("request failed", "request_id", RequestID(c), "path", c.FullPath(), "kind", kind, "err", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorBody(kind, msg))
}
