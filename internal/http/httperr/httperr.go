// Package httperr renders the error envelope every response shares, so
// middleware aborts and handler errors look the same on the wire.
package httperr

import "github.com/gin-gonic/gin"

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// RequestID returns the id the request-id middleware attached, falling back
// to the inbound header.
func RequestID(ctx *gin.Context) string {
	if v, ok := ctx.Get("request_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	return ctx.GetHeader("X-Request-Id")
}

// Write renders the envelope without stopping the handler chain.
func Write(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: RequestID(ctx),
			Details:   details,
		},
	})
}

// Abort renders the envelope and stops the chain.
func Abort(ctx *gin.Context, status int, code, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: RequestID(ctx),
		},
	})
}
