package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/config"
	"github.com/Gopher0727/Rally/internal/handlers"
	"github.com/Gopher0727/Rally/internal/metrics"
	"github.com/Gopher0727/Rally/internal/middlewares"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/middleware/jwt"
	logger "github.com/Gopher0727/Rally/middleware/log"
	"github.com/Gopher0727/Rally/pkg/ws"
	"github.com/Gopher0727/Rally/utils/ratelimit"
)

// Deps 由 main 组装后注入
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Tokens  *jwt.TokenManager
	Revoked middlewares.RevocationChecker
	Limiter ratelimit.Limiter
	Pool    *utils.WorkerPool
	Metrics *metrics.Metrics

	Hub     *ws.Hub
	Members ws.Membership

	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Groups *handlers.GroupHandler
	Items  *handlers.ItemHandler
	Images *handlers.ImageHandler

	// 本地存储时对外提供图片的目录，为空则不挂载
	ImageDir string
}

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, d *Deps) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", logger.TraceHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.Use(logger.GinRecovery(d.Logger), logger.GinLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	auth := middlewares.AuthMiddleware(d.Tokens, d.Revoked)

	// WebSocket 路由 (必须在 AsyncMiddleware 之前注册，避免长连接占用 Worker)
	if d.Hub != nil {
		r.GET("/ws", auth, func(c *gin.Context) {
			ws.ServeWs(d.Hub, d.Members, c)
		})
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if d.ImageDir != "" {
		r.Static("/images", d.ImageDir)
	}

	api := r.Group("/api/v1")
	// 将请求放入 Worker Pool 中排队执行
	api.Use(middlewares.AsyncMiddleware(d.Pool))

	RegisterAuthRoutes(api, d.Auth, auth)
	RegisterUserRoutes(api, d.Users, auth)
	RegisterGroupRoutes(api, d.Groups, auth)
	RegisterItemRoutes(api, d.Items, auth, d.Limiter, d.Config.RateLimit)
	api.POST("/images", auth, d.Images.Upload)
	api.PATCH("/users/me/avatar", auth, d.Images.UploadAvatar)
}

func RegisterAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler, auth gin.HandlerFunc) {
	g := api.Group("/auth")
	{
		g.POST("/signup", h.Signup)
		g.POST("/login", h.Login)
		g.POST("/confirm", h.ConfirmEmail)
		g.POST("/refresh", h.Refresh)
	}
	g.Use(auth)
	{
		g.POST("/logout", h.Logout)
		g.GET("/me", h.Me)
	}
}

func RegisterUserRoutes(api *gin.RouterGroup, h *handlers.UserHandler, auth gin.HandlerFunc) {
	g := api.Group("/users", auth)
	{
		g.GET("", h.GetUsers)
		g.GET("/:user_id", h.GetUser)
	}
}

func RegisterGroupRoutes(api *gin.RouterGroup, h *handlers.GroupHandler, auth gin.HandlerFunc) {
	g := api.Group("/groups", auth)
	{
		g.POST("", h.CreateGroup)
		g.GET("", h.GetGroups)
		g.GET("/overview", h.GetOverview)
		g.POST("/join", h.JoinGroup)

		g.GET("/:group_id", h.GetGroup)
		g.PATCH("/:group_id", h.UpdateGroup)
		g.DELETE("/:group_id", h.DeleteGroup)

		g.GET("/:group_id/items", h.GetItems)
		g.POST("/:group_id/items", h.CreateItem)
		g.GET("/:group_id/board", h.GetBoard)
	}
}

// RegisterItemRoutes 评论、RSVP、投票按用户限流
func RegisterItemRoutes(api *gin.RouterGroup, h *handlers.ItemHandler, auth gin.HandlerFunc, limiter ratelimit.Limiter, rl config.RateLimitConfig) {
	commentLimit := middlewares.RateLimitMiddleware(limiter, "comment", ratelimit.PerMinute(rl.CommentPerMinute))
	rsvpLimit := middlewares.RateLimitMiddleware(limiter, "rsvp", ratelimit.PerMinute(rl.RsvpPerMinute))
	voteLimit := middlewares.RateLimitMiddleware(limiter, "vote", ratelimit.PerMinute(rl.VotePerMinute))

	items := api.Group("/items", auth)
	{
		items.PATCH("/:item_id", h.UpdateItem)
		items.DELETE("/:item_id", h.DeleteItem)

		items.POST("/:item_id/rsvp", rsvpLimit, h.Rsvp)
		items.DELETE("/:item_id/rsvp", rsvpLimit, h.RemoveRsvp)

		items.GET("/:item_id/comments", h.GetComments)
		items.POST("/:item_id/comments", commentLimit, h.AddComment)
		items.GET("/:item_id/comments/count", h.GetCommentCount)

		items.GET("/:item_id/dates", h.ListDates)
		items.POST("/:item_id/dates", h.SuggestDate)
	}

	api.DELETE("/comments/:comment_id", auth, h.DeleteComment)

	dates := api.Group("/dates", auth)
	{
		dates.PATCH("/:suggestion_id", h.EditDate)
		dates.DELETE("/:suggestion_id", h.DeleteDate)
		dates.POST("/:suggestion_id/vote", voteLimit, h.VoteDate)
	}
}
