package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plaza/internal/handlers"
	"plaza/internal/middleware"
)

// Handlers 路由用到的全部 handler
type Handlers struct {
	Auth        *handlers.AuthHandler
	Posts       *handlers.PostHandler
	Comments    *handlers.CommentHandler
	Votes       *handlers.VoteHandler
	Communities *handlers.CommunityHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, handlers.NewBasicResponse(true, "ok")) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 登录 (Auth Routes)
	authGroup := r.Group("/auth")
	{
		// 跳转第三方登录，回调后写入 session
		authGroup.GET("/login/:provider", h.Auth.Login)
		authGroup.GET("/callback", h.Auth.Callback)
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.GET("/me", middleware.AuthRequired(), h.Auth.Me)
	}

	// 接口 (API Routes)，写操作的登录校验在 service 层完成
	api := r.Group("/api")
	{
		api.GET("/posts", h.Posts.List)
		api.POST("/posts", h.Posts.Create)
		api.GET("/posts/:id", h.Posts.Detail)
		api.GET("/posts/:id/comments", h.Comments.List)
		api.POST("/posts/:id/comments", h.Comments.Create)
		api.GET("/posts/:id/votes", h.Votes.Tally)
		api.POST("/posts/:id/votes", h.Votes.Vote)

		api.GET("/communities", h.Communities.List)
		api.POST("/communities", h.Communities.Create)
		api.GET("/communities/:id/posts", h.Communities.Posts)
	}
}
