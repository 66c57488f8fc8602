package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/config"
	"github.com/Gopher0727/Rally/internal/app"
	"github.com/Gopher0727/Rally/internal/consumer"
	"github.com/Gopher0727/Rally/internal/metrics"
	"github.com/Gopher0727/Rally/internal/services"
	"github.com/Gopher0727/Rally/internal/storage"
	logger "github.com/Gopher0727/Rally/middleware/log"
	"github.com/Gopher0727/Rally/pkg/mq"
	"github.com/Gopher0727/Rally/pkg/ws"
	"github.com/Gopher0727/Rally/utils/snowflake"
)

func main() {
	// .env 可选，只用于本地开发
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	lg, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer lg.Close()
	zl := lg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库：优先使用 database.dsn，否则由 postgres.* 拼接
	dsn := cfg.Database.DSN
	if dsn == "" {
		dsn = storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	}
	db, err := storage.InitDatabase(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns, zl)
	if err != nil {
		zl.Fatal("数据库初始化失败", zap.Error(err))
	}

	// 初始化 Redis；不可用时降级运行（无缓存、无吊销、无限流、单实例推送）
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		zl.Warn("Redis 不可用，以降级模式运行", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	// 初始化图片存储
	var store storage.ObjectStore
	switch cfg.Storage.Driver {
	case "gcs":
		gcs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile, cfg.Storage.PublicBaseURL)
		if err != nil {
			zl.Fatal("GCS 初始化失败", zap.Error(err))
		}
		defer gcs.Close()
		store = gcs
	default:
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			zl.Fatal("本地存储初始化失败", zap.Error(err))
		}
		store = local
	}

	ids, err := snowflake.NewGenerator(cfg.Snowflake.WorkerID)
	if err != nil {
		zl.Fatal("snowflake 初始化失败", zap.Error(err))
	}

	// 初始化 WebSocket Hub
	hub := ws.NewHub(redisClient, zl)
	if err := hub.Start(ctx); err != nil {
		zl.Fatal("Hub 启动失败", zap.Error(err))
	}

	// 事件出口：Kafka 可用时写入 Kafka，由消费者转给 Hub；否则直接交给 Hub
	var sink services.EventPublisher = hub
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
		if err != nil {
			zl.Warn("Kafka 生产者初始化失败，事件直接推送", zap.Error(err))
		} else {
			defer producer.Close()
			group, err := consumer.StartConsumer(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, consumer.NewEventConsumer(hub, zl), zl)
			if err != nil {
				zl.Warn("Kafka 消费者启动失败，事件直接推送", zap.Error(err))
			} else {
				defer group.Close()
				sink = producer
			}
		}
	}

	gin.SetMode(cfg.Server.Mode)

	a := app.New(app.Infra{
		Config:  cfg,
		Logger:  lg,
		DB:      db,
		Redis:   redisClient,
		Store:   store,
		IDs:     ids,
		Metrics: metrics.New(hub.Online),
		Sink:    sink,
		Hub:     hub,
	})
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("收到退出信号，正在关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("服务器关闭失败", zap.Error(err))
	}
}
