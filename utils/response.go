package utils

import "github.com/gin-gonic/gin"

// JSONResponse is the envelope every endpoint returns. Code 0 means success;
// non-zero codes follow the business numbering (404xx missing plan/record,
// 403xx ownership, 400xx validation, 409xx day conflicts, 500xx internal).
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success wraps data in the success envelope. Record and streak payloads go
// out through here so cached and fresh reads share one shape.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}
