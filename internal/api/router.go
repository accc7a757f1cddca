package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/memefeed/internal/api/handler"
	"github.com/timmy/memefeed/internal/api/middleware"
	"github.com/timmy/memefeed/internal/config"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/metrics"
	"github.com/timmy/memefeed/internal/service"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Feed     service.FeedAggregator
	Comments handler.CommentCreator
	Drafts   handler.Drafts
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, svc Services, m *metrics.Registry, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	healthHandler := handler.NewHealthHandler()
	feedHandler := handler.NewFeedHandler(svc.Feed)
	commentHandler := handler.NewCommentHandler(svc.Comments)
	draftHandler := handler.NewDraftHandler(svc.Drafts, cfg.Composer.MaxPictureBytes)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(middleware.NewClientLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)))
	v1.Use(middleware.Auth())
	{
		// Feed
		v1.GET("/feed", feedHandler.GetFeed)

		// Comments
		v1.POST("/memes/:id/comments", commentHandler.CreateComment)

		// Composer drafts
		drafts := v1.Group("/drafts")
		drafts.POST("", draftHandler.Create)
		drafts.GET("", draftHandler.List)
		drafts.GET("/:id", draftHandler.Get)
		drafts.DELETE("/:id", draftHandler.Delete)
		drafts.PUT("/:id/picture", draftHandler.SetPicture)
		drafts.GET("/:id/picture", draftHandler.Picture)
		drafts.POST("/:id/captions", draftHandler.AddCaption)
		drafts.PUT("/:id/captions/:index", draftHandler.EditCaption)
		drafts.DELETE("/:id/captions/:index", draftHandler.DeleteCaption)
		drafts.PUT("/:id/description", draftHandler.SetDescription)
		drafts.POST("/:id/submit", draftHandler.Submit)
	}

	return r
}
