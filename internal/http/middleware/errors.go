package middleware

import "github.com/gin-gonic/gin"

// abortJSON ends the chain with the API's error envelope:
//
//	{ "request_id": "...", "code": "...", "message": "..." }
func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": GetRequestID(c),
		"code":       code,
		"message":    message,
	})
}
