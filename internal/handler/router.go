package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"atmservice/pkg/response"
)

func SetupRouter(h *Handler, verifier TokenVerifier, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", h.Login)

		account := api.Group("/account", AuthMiddleware(verifier))
		{
			account.GET("", h.GetAccount)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.GET("/transactions", h.ListTransactions)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Route not found")
	})

	return r
}
