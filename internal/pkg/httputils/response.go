// Package httputils provides HTTP utility functions.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard JSON envelope for API responses.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess writes a success response with optional data.
func WriteSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// WriteError writes an error response with the given HTTP status.
func WriteError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}
