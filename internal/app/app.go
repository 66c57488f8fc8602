// Package app 把仓储、服务、处理器和路由组装成可运行的 gin 引擎
package app

import (
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Gopher0727/Rally/config"
	"github.com/Gopher0727/Rally/internal/handlers"
	"github.com/Gopher0727/Rally/internal/metrics"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/routers"
	"github.com/Gopher0727/Rally/internal/services"
	"github.com/Gopher0727/Rally/internal/storage"
	"github.com/Gopher0727/Rally/internal/utils"
	"github.com/Gopher0727/Rally/middleware/jwt"
	logger "github.com/Gopher0727/Rally/middleware/log"
	"github.com/Gopher0727/Rally/pkg/ws"
	"github.com/Gopher0727/Rally/utils/ratelimit"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

// Infra 外部资源，由 main 或测试创建
type Infra struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *gorm.DB
	Redis   *redis.Client // 可为 nil：不缓存、不吊销、不限流
	Store   storage.ObjectStore
	IDs     *snowflake.Generator
	Metrics *metrics.Metrics

	// Sink 事件的最终去向：Kafka 生产者或 Hub；为 nil 时丢弃
	Sink services.EventPublisher
	Hub  *ws.Hub

	// Sender 邮箱确认投递，为 nil 时写日志
	Sender services.ConfirmationSender
}

type App struct {
	Engine    *gin.Engine
	Groups    *services.GroupService
	Auth      *services.AuthService
	pool      *utils.WorkerPool
	eventPool *utils.WorkerPool
}

func New(in Infra) *App {
	cfg := in.Config
	zl := in.Logger.Logger

	// 请求与事件使用独立的协程池，事件发送不会占满请求 worker
	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, zl)
	pool.Start()
	eventPool := utils.NewWorkerPool(max(cfg.WorkerPool.Size/4, 1), cfg.WorkerPool.QueueSize, zl)
	eventPool.Start()

	sink := in.Sink
	if sink == nil {
		sink = services.NopPublisher
	}
	if in.Metrics != nil {
		sink = in.Metrics.WrapPublisher(sink)
	}
	pub := services.NewAsyncPublisher(sink, eventPool, zl)

	// 仓储层
	accountRepo := repositories.NewAccountRepository(in.DB)
	profileRepo := repositories.NewProfileRepository(in.DB, in.Redis)
	groupRepo := repositories.NewGroupRepository(in.DB)
	itemRepo := repositories.NewItemRepository(in.DB)
	rsvpRepo := repositories.NewRsvpRepository(in.DB)
	commentRepo := repositories.NewCommentRepository(in.DB)
	dateRepo := repositories.NewDateSuggestionRepository(in.DB)

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	var (
		rdb     redis.Cmdable
		limiter ratelimit.Limiter
	)
	if in.Redis != nil {
		rdb = in.Redis
		limiter = ratelimit.NewWindowLimiter(in.Redis, zl, cfg.RateLimit.FailOpen)
	}
	sender := in.Sender
	if sender == nil {
		sender = services.LogConfirmationSender{Log: zl}
	}

	// 服务层
	authService := services.NewAuthService(accountRepo, profileRepo, tokens, rdb, sender, in.IDs, cfg.Auth.RequireEmailConfirmation, zl)
	userService := services.NewUserService(profileRepo)
	groupService := services.NewGroupService(groupRepo, itemRepo, profileRepo, in.IDs, pub, zl)
	itemService := services.NewItemService(itemRepo, rsvpRepo, commentRepo, groupRepo, profileRepo, in.IDs, pub, zl)
	commentService := services.NewCommentService(commentRepo, itemRepo, groupRepo, profileRepo, in.IDs, pub, zl)
	dateService := services.NewDateService(dateRepo, itemRepo, groupRepo, in.IDs, pub, zl)
	maxBytes := cfg.Storage.MaxUploadMB << 20
	imageService := services.NewImageService(in.Store, profileRepo, maxBytes, zl)

	deps := &routers.Deps{
		Config:  cfg,
		Logger:  in.Logger,
		Tokens:  tokens,
		Revoked: authService,
		Limiter: limiter,
		Pool:    pool,
		Metrics: in.Metrics,
		Hub:     in.Hub,
		Members: groupService,
		Auth:    handlers.NewAuthHandler(authService, in.Logger),
		Users:   handlers.NewUserHandler(userService, in.Logger),
		Groups:  handlers.NewGroupHandler(groupService, itemService, in.Logger),
		Items:   handlers.NewItemHandler(itemService, commentService, dateService, in.Logger),
		Images:  handlers.NewImageHandler(imageService, maxBytes, in.Logger),
	}
	if local, ok := in.Store.(*storage.LocalStore); ok {
		deps.ImageDir = local.Root()
	}

	r := gin.New()
	routers.SetupRoutes(r, deps)

	return &App{
		Engine:    r,
		Groups:    groupService,
		Auth:      authService,
		pool:      pool,
		eventPool: eventPool,
	}
}

// Close 先停请求池，再停事件池
func (a *App) Close() {
	a.pool.Stop()
	a.eventPool.Stop()
}
