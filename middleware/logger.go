package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// quietPaths are probed constantly and would drown the request log
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// RequestLogger logs method, path, status, size and latency of each request.
// Client addresses are deliberately left out.
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if quietPaths[path] {
			return
		}

		logger.Printf(
			"%s %s %d %dB %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			c.Writer.Size(),
			time.Since(start),
		)
	}
}
