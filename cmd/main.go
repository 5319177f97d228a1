package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"affiliate_order_v1/internal/config"
	"affiliate_order_v1/internal/controller"
	"affiliate_order_v1/internal/middleware"
	"affiliate_order_v1/internal/model"
	"affiliate_order_v1/internal/queue"
	"affiliate_order_v1/internal/repository"
	"affiliate_order_v1/internal/router"
	"affiliate_order_v1/internal/service"
	"affiliate_order_v1/internal/task"
	"affiliate_order_v1/pkg/database"
	"affiliate_order_v1/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(getEnv("APP_CONFIG_FILE", ""))
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	if _, err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer logger.Sync()

	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenTTL: cfg.JWT.AccessTTL,
		Issuer:         cfg.JWT.Issuer,
	})

	// 2. 初始化依赖
	deps, err := initDependencies(cfg)
	if err != nil {
		logger.L().Fatalw("依赖初始化失败", "error", err)
	}
	defer deps.Close()

	// 3. 启动后台任务
	if err := deps.Tasks.Start(); err != nil {
		logger.L().Fatalw("后台任务启动失败", "error", err)
	}

	// 4. 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := router.NewEngine()
	router.InitRoutes(r, deps.Controllers, router.Options{
		PayoutCooldown: cfg.Payout.Cooldown,
		Queue:          deps.Queue,
	})

	// 5. 启动服务
	startServer(r, cfg.Server, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Queue       queue.Queue
	UoW         *repository.UnitOfWork
	Services    *Services
	Controllers *router.Controllers
	Tasks       *task.TaskManager
}

// Services 服务集合
type Services struct {
	Merchant  *service.MerchantService
	Affiliate *service.AffiliateService
	Order     *service.OrderService
	Payout    *service.PayoutService
	Stats     *service.StatsService
}

// Close 释放连接
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		database.Close(d.DB)
	}
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config) (*Dependencies, error) {
	db, err := database.InitDB(database.Config{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		LogLevel:     cfg.Database.LogLevel,
	}, model.AllModels()...)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{DB: db}

	// -------- 队列 --------
	if err := initQueue(cfg, deps); err != nil {
		database.Close(db)
		return nil, err
	}

	// -------- Repo 层 --------
	deps.UoW = repository.NewUnitOfWork(db)

	// -------- 业务服务 --------
	notifier := service.NewEmailNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	deps.Services = &Services{
		Merchant:  service.NewMerchantService(deps.UoW),
		Affiliate: service.NewAffiliateService(deps.UoW, notifier),
		Order:     service.NewOrderService(deps.UoW),
		Payout:    service.NewPayoutService(deps.UoW, deps.Queue),
		Stats:     service.NewStatsService(deps.UoW.Orders),
	}

	// -------- Controller 层 --------
	deps.Controllers = &router.Controllers{
		Order:     controller.NewOrderController(deps.Services.Order),
		Merchant:  controller.NewMerchantController(deps.Services.Merchant, deps.Services.Stats),
		Affiliate: controller.NewAffiliateController(deps.Services.Merchant, deps.Services.Affiliate, deps.Services.Payout),
	}

	// -------- 后台任务 --------
	deps.Tasks = task.NewTaskManager(&task.TaskManagerDeps{
		Queue:   deps.Queue,
		Settler: deps.Services.Payout,
	}, &task.TaskManagerConfig{
		PayoutEnabled:      true,
		PayoutConcurrency:  cfg.Payout.Concurrency,
		PayoutPollInterval: cfg.Payout.PollInterval,
		ReapSpec:           cfg.Payout.ReapSpec,
	})

	return deps, nil
}

// initQueue redis.url 为空时使用内存队列（仅限单进程开发环境）
func initQueue(cfg *config.Config, deps *Dependencies) error {
	if cfg.Redis.URL == "" {
		logger.L().Warnw("未配置 redis.url，使用内存队列，进程退出后未处理的结算任务会丢失")
		deps.Queue = queue.NewMemoryQueue(10000, cfg.Payout.MaxAttempts)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := queue.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	deps.Redis = client
	deps.Queue = queue.NewRedisQueue(client, queue.RedisOptions{
		KeyPrefix:         cfg.Redis.KeyPrefix,
		VisibilityTimeout: cfg.Payout.VisibilityTimeout,
		MaxAttempts:       cfg.Payout.MaxAttempts,
	})
	return nil
}

// ==================== 服务启动 ====================

// startServer 启动服务，收到退出信号后依次关闭 HTTP、后台任务、通知
func startServer(r *gin.Engine, cfg config.ServerConfig, deps *Dependencies) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 异步启动服务
	go func() {
		logger.L().Infow("服务启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatalw("服务启动失败", "error", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Infow("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Errorw("服务强制关闭", "error", err)
	}

	deps.Tasks.Stop()
	deps.Services.Affiliate.Wait()

	logger.L().Infow("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
