package handler

import (
	"net/http"
	"strings"
	"time"

	"atmservice/internal/security"
	"atmservice/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ctxCustomerID = "customer_id"

// TokenVerifier validates a bearer token and returns the customer it was
// issued to.
type TokenVerifier interface {
	Parse(token string) (uuid.UUID, *security.Claims, error)
}

// LoggerMiddleware writes one access log entry per request.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		logger.Info("http request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
	}
}

// RecoveryMiddleware turns a panic into an opaque 500.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("panic", err),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				response.ServerError(c)
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	})
}

// AuthMiddleware requires "Authorization: Bearer <token>" and stores the
// customer id for the handlers.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			response.Unauthorized(c, "Missing bearer token")
			return
		}
		id, _, err := verifier.Parse(token)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			return
		}
		c.Set(ctxCustomerID, id)
		c.Next()
	}
}

func customerID(c *gin.Context) uuid.UUID {
	return c.MustGet(ctxCustomerID).(uuid.UUID)
}
