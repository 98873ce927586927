package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API endpoint returns.
// Success carries the payload under "response"; errors carry a
// human-readable "comment" there instead.
type Response struct {
	Status   string `json:"status"`
	Response any    `json:"response,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// OK sends a bare success response with no payload.
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Status: StatusOK})
}

// OKData sends a success response with a payload.
func OKData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status:   StatusOK,
		Response: data,
	})
}

// Error sends an error response with the given HTTP status and comment.
func Error(c *gin.Context, httpStatus int, comment string) {
	c.JSON(httpStatus, Response{
		Status:   StatusError,
		Response: gin.H{"comment": comment},
	})
}

// FailErr sends an error response from an AppError. The wrapped internal
// error, if any, is logged by the caller's middleware, never returned.
func FailErr(c *gin.Context, err *AppError) {
	Error(c, err.HTTPStatus, err.Comment)
}
