package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/driftbottle/internal/ws"
)

// SetupRoutes wires all middleware and routes onto router. uploadDir is
// served statically under /uploads; corsOrigin "*" allows any origin.
func SetupRoutes(router *gin.Engine, env *Env, uploadDir, corsOrigin string) {
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: corsOrigin != "*",
	}))

	// Throttle the anonymous write endpoints.
	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.Sweep()
		}
	}()

	adminOnly := AdminAuthMiddleware(env.Admin)

	api := router.Group("/api")
	{
		api.GET("/key", env.IssueKey)
		api.POST("/upload", RateLimitMiddleware(limiter), env.Upload)

		api.GET("/records", env.ListApproved)
		api.GET("/records/pending", adminOnly, env.ListPending)
		api.POST("/records/:id/review", adminOnly, env.ReviewRecord)
		api.PUT("/records/:id", env.EditRecord)
		api.DELETE("/records/:id", adminOnly, env.DeleteRecord)
		api.GET("/random", env.RandomRecord)

		api.POST("/records/:id/comments", RateLimitMiddleware(limiter), env.AddComment)
		api.GET("/records/:id/comments", env.ListComments)
		api.GET("/comments/pending", adminOnly, env.PendingComments)
		api.POST("/comments/:id/review", adminOnly, env.ReviewComment)
		api.DELETE("/comments/:id", adminOnly, env.DeleteComment)

		api.POST("/admin/init", env.AdminInit)
		api.POST("/admin/login", env.AdminLogin)
	}

	// Live moderation event feed.
	if env.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(env.Hub, c.Writer, c.Request)
		})
	}

	// Uploaded media, served as-is.
	router.Static("/uploads", uploadDir)
}
