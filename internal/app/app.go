package app

import (
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/controller"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/internal/service"
	"ai_tutor_backend/pkg/database"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"ai_tutor_backend/pkg/security"
	"ai_tutor_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	user    *repository.UserRepository
	course  *repository.CourseRepository
	lesson  *repository.LessonRepository
	pending *repository.PendingTranscriptRepository
	chat    *repository.ChatRepository
}

type services struct {
	auth          *service.AuthService
	user          *service.UserService
	course        *service.CourseService
	lesson        *service.LessonService
	ingest        *service.IngestService
	transcript    *service.TranscriptService
	tutor         *service.TutorService
	ai            *service.AIService
	storage       *service.StorageService
	summaryWorker *service.SummaryWorker
	chatHub       *service.ChatHub
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	course     *controller.CourseController
	lesson     *controller.LessonController
	transcript *controller.TranscriptController
	tutor      *controller.TutorController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		course:  repository.NewCourseRepository(db),
		lesson:  repository.NewLessonRepository(db),
		pending: repository.NewPendingTranscriptRepository(db),
		chat:    repository.NewChatRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.storage = service.NewStorageService(cfg)
	s.ai = service.NewAIService(cfg.AI)

	s.summaryWorker = service.NewSummaryWorker(repos.lesson, s.ai, cfg.AI.QueueSize)
	s.summaryWorker.Start()

	s.course = service.NewCourseService(repos.course)
	s.lesson = service.NewLessonService(repos.lesson, repos.course, s.storage, s.summaryWorker)
	s.ingest = service.NewIngestService(repos.course, repos.pending, cfg.Ingest.MergeWindow())
	s.transcript = service.NewTranscriptService(db, repos.pending, repos.course, repos.lesson, s.summaryWorker)

	s.chatHub = service.NewChatHub(rdb, repos.chat)
	go s.chatHub.Run()

	s.tutor = service.NewTutorService(repos.lesson, repos.course, repos.chat, s.ai, s.chatHub)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		user:       controller.NewUserController(s.user),
		course:     controller.NewCourseController(s.course),
		lesson:     controller.NewLessonController(s.lesson),
		transcript: controller.NewTranscriptController(s.ingest, s.transcript),
		tutor:      controller.NewTutorController(s.tutor, s.chatHub),
		health:     controller.NewHealthController(db),
	}
}

// OnConfigReload 应用可热更新的配置项。
// 数据库、端口等需要重启的配置不在此处理。
func (a *App) OnConfigReload(newCfg *config.Config) {
	if a.services != nil && a.services.ai != nil {
		a.services.ai.UpdateConfig(newCfg.AI)
	}
	logger.Log.Info("Config reloaded",
		zap.String("aiModel", newCfg.AI.Model),
		zap.String("aiBaseUrl", newCfg.AI.BaseURL))
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	// 下游中间件从context取配置
	router.Use(func(c *gin.Context) {
		c.Set("config", cfg)
		c.Next()
	})

	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(100000, time.Minute)) // 每分钟100000次请求

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认跳过迁移，-migrate / -migrate-only 可强制执行
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Log.Info("Database migration completed")
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("ai-tutor-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 清理WebSocket连接和Redis在线状态
	if a.services != nil && a.services.chatHub != nil {
		a.services.chatHub.Stop()
	}
	// 等待队列中的摘要任务完成
	if a.services != nil && a.services.summaryWorker != nil {
		a.services.summaryWorker.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
