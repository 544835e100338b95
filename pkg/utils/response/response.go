package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ojudge/pkg/errors"
	"ojudge/pkg/utils/logger"
)

// ErrorBody is the wire shape of an error response. The code/reason pair is
// what clients match on; message is human-readable.
type ErrorBody struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// JSON sends a successful response with the payload serialized as-is.
// Handlers return raw domain objects (jobs, users, standings) rather than
// an envelope, so stored payload shapes are stable for clients.
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error response
// It derives HTTP status, reason token and numeric code from the error
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)

	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(customErr.Code)),
		zap.String("reason", customErr.Code.Reason()),
		zap.String("message", customErr.Error()),
	)

	c.JSON(customErr.Code.HTTPStatus(), ErrorBody{
		Code:    customErr.Code.APICode(),
		Reason:  customErr.Code.Reason(),
		Message: customErr.Error(),
	})
}

// ErrorWithCode sends an error response with a specific error code
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}
	Error(c, errors.New(code).WithMessage(message))
}

// BadRequest sends a 400 response with an invalid-argument reason
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.InvalidParams, message)
}
