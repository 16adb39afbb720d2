package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minischools/academy-backend/internal/platform/apierr"
)

var errInternal = errors.New("internal server error")

// Envelope is the {success, data, message} shape used by generation, quiz
// and media routes.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func Success(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Message: message, Code: code})
}

// FailAPIError is RespondAPIError for envelope routes.
func FailAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae.Status >= http.StatusInternalServerError && ae.Code == "internal_error" {
		_ = c.Error(err)
		Fail(c, ae.Status, ae.Code, errInternal.Error())
		return
	}
	msg := ae.Code
	if ae.Err != nil {
		msg = ae.Err.Error()
	}
	Fail(c, ae.Status, ae.Code, msg)
}
