package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"authrisk/internal/service"
)

// SetupRoutes registers the risk engine's HTTP surface, mirroring the
// teacher's handlers.SetupRoutes: CORS + security headers first, then the
// five external operations of spec.md §6.
func SetupRoutes(router *gin.Engine, allowedOrigins []string, svc *service.RiskService, jwtSecret string) {
	router.Use(setupCORS(allowedOrigins))
	router.Use(securityHeadersMiddleware())

	h := NewHandlers(svc, jwtSecret)

	router.GET("/health", HealthCheck)

	risk := router.Group("/risk")
	{
		risk.POST("/analyze", h.AnalyzeLoginAttempt)
		risk.POST("/feedback", h.ProvideFeedback)
		risk.GET("/thresholds/:user_id", h.GetAdaptiveThresholds)
		risk.GET("/metrics", h.GetPerformanceMetrics)
		risk.POST("/models/rollback", h.RollbackModel)
	}
}

// setupCORS configures CORS middleware, grounded on the teacher's
// middleware.SetupCORS (gin-contrib/cors).
func setupCORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = allowedOrigins
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

// securityHeadersMiddleware mirrors the teacher's SecurityHeadersMiddleware.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
