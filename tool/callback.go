package tool

import (
	"github.com/gin-gonic/gin"
)

func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

func FastReturnOK() gin.H {
	return gin.H{
		"ok": true,
	}
}

// AbortWithError writes {"error": msg} with the given status and stops the handler chain.
func AbortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, FastReturnError(msg))
}
