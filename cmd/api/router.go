package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"grimoire-backend/internal/shared/middleware"
	"grimoire-backend/internal/shared/response"
	"grimoire-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()
	// the upload middleware enforces its own limit; this bounds the rest of the form in memory
	router.MaxMultipartMemory = c.Config.Storage.MaxUploadBytes + (1 << 20)

	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.CORSOrigins),
	)

	router.GET("/images/:file", c.BookHandler.ServeImage)

	api := router.Group("/api")
	{
		api.GET("/health", healthCheckHandler(c))
		api.GET("/images/:file", c.BookHandler.ServeImage)

		setupAuthRoutes(api, c)
		setupBookRoutes(api, c)
	}

	return router
}

// ========================================
// AUTH ROUTES
// ========================================
func setupAuthRoutes(api *gin.RouterGroup, c *container.Container) {
	auth := api.Group("/auth")
	{
		auth.POST("/signup", c.UserHandler.Signup)
		auth.POST("/login", c.UserHandler.Login)
	}
}

// ========================================
// BOOK ROUTES
// ========================================
func setupBookRoutes(api *gin.RouterGroup, c *container.Container) {
	uploadConfig := middleware.UploadConfig{
		Storage:       c.Storage,
		Processor:     c.ImageProcessor,
		PublicBaseURL: c.Config.App.PublicBaseURL,
		MaxBytes:      c.Config.Storage.MaxUploadBytes,
	}
	requiredUpload := uploadConfig
	requiredUpload.Required = true

	auth := middleware.AuthMiddleware(c.JWTManager)

	books := api.Group("/books")
	{
		books.GET("", c.BookHandler.ListBooks)
		books.GET("/bestrating", c.BookHandler.TopRated)
		books.GET("/:id", c.BookHandler.GetBook)

		books.POST("", auth, middleware.ImageUpload(requiredUpload), c.BookHandler.CreateBook)
		books.PUT("/:id", auth, middleware.ImageUpload(uploadConfig), c.BookHandler.UpdateBook)
		books.DELETE("/:id", auth, c.BookHandler.DeleteBook)
		books.POST("/:id/rating", auth, c.BookHandler.RateBook)
	}
}

// ========================================
// HEALTH
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		dbStatus := "ok"
		if appCtx.DB == nil {
			dbStatus = "disconnected"
		} else if err := appCtx.DB.Ping(ctx); err != nil {
			dbStatus = "error"
		}
		if dbStatus != "ok" {
			health["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		health["database"] = dbStatus

		// cache is optional: a failure degrades, it does not make the API unavailable
		cacheStatus := "disabled"
		if appCtx.Cache != nil {
			cacheStatus = "ok"
			if err := appCtx.Cache.Ping(ctx); err != nil {
				cacheStatus = "error"
				if status == http.StatusOK {
					health["status"] = "degraded"
				}
			}
		}
		health["cache"] = cacheStatus

		if status == http.StatusServiceUnavailable {
			response.ServiceUnavailable(c, health)
			return
		}
		response.Success(c, status, health)
	}
}
