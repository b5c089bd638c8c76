package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRouter configures the HTTP router
func SetupRouter(authService *service.AuthService, logger zerolog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	authHandlers := NewAuthHandlers(authService, logger)

	router.GET("/health", authHandlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Public routes
	router.GET("/chain", authHandlers.Chain)
	router.POST("/register", authHandlers.Register)
	router.POST("/login", authHandlers.Login)
	router.POST("/register-with-metamask", authHandlers.RegisterWithAddress)
	router.POST("/generate-nonce", authHandlers.GenerateNonce)
	router.POST("/login-with-metamask", authHandlers.LoginWithSignature)

	// Protected routes
	protected := router.Group("/")
	protected.Use(AuthMiddleware(authService))
	{
		protected.POST("/logout", authHandlers.Logout)

		keys := protected.Group("/user/api-keys")
		keys.GET("", authHandlers.ListKeys)
		keys.POST("", authHandlers.CreateKey)
		keys.POST("/sweep", authHandlers.SweepKeys)
		keys.DELETE("/:key", authHandlers.RevokeKey)
	}

	return router
}
