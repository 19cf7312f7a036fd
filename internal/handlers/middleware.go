package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/moheebaljmaly/tafawuq-exam-central/internal/utils"
)

// SetupMiddleware installs the shared middleware chain. Order matters:
// the request id must exist before the context logger stamps it into
// the request-scoped logger.
func SetupMiddleware(router *gin.Engine, logger utils.Logger) {
	router.Use(requestID())
	router.Use(cors())
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(secureHeaders())
}

// requestID propagates an inbound X-Request-ID or mints one, so every
// log line and response can be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func secureHeaders() gin.HandlerFunc {
	static := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}
	return func(c *gin.Context) {
		for name, value := range static {
			c.Header(name, value)
		}
		c.Next()
	}
}

// cors answers preflight requests directly and opens the API to
// browser clients. Exposing Content-Disposition lets the result export
// download keep its filename.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Request-ID")
		c.Header("Access-Control-Max-Age", "43200")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
