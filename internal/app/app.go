package app

import (
	"context"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/controller"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/configwatcher"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/security"
	"learnhub_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	scheduler       *cron.Cron
	tracer          *sdktrace.TracerProvider
	stopWatch       context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user           *repository.UserRepository
	course         *repository.CourseRepository
	enrollment     *repository.EnrollmentRepository
	lessonProgress *repository.LessonProgressRepository
}

type services struct {
	progress   *service.ProgressService
	access     *service.AccessService
	enrollment *service.EnrollmentService
	bulk       *service.BulkEnrollmentService
	sweeper    *service.ExpirationSweeper
}

type controllers struct {
	enrollment *controller.EnrollmentController
	access     *controller.AccessController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		course:         repository.NewCourseRepository(db),
		enrollment:     repository.NewEnrollmentRepository(db),
		lessonProgress: repository.NewLessonProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	var notifier service.Notifier = service.LogNotifier{}
	var locker service.Locker
	if rdb != nil {
		notifier = service.NewRedisNotifier(rdb, cfg.Enrollment.NotificationQueue)
		locker = database.NewRedisLocker(rdb)
	}

	s.progress = service.NewProgressService(repos.enrollment, repos.lessonProgress, repos.course)
	s.access = service.NewAccessService(repos.enrollment, repos.course)
	s.enrollment = service.NewEnrollmentService(
		repos.enrollment,
		repos.user,
		repos.course,
		s.progress,
		notifier,
		service.NewCertificateStorage(&cfg.Storage),
		cfg.Enrollment,
	)
	s.bulk = service.NewBulkEnrollmentService(s.enrollment, repos.course)
	s.sweeper = service.NewExpirationSweeper(repos.enrollment, locker, cfg.Enrollment.SweepLockTTL())

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		enrollment: controller.NewEnrollmentController(s.enrollment, s.bulk, s.sweeper),
		access:     controller.NewAccessController(s.access, s.progress),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时清理过期报名
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	a.scheduler = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := a.scheduler.AddJob(cfg.Enrollment.SweepSchedule, s.sweeper); err != nil {
		logger.Log.Fatal("Invalid enrollment sweep schedule",
			zap.String("schedule", cfg.Enrollment.SweepSchedule),
			zap.Error(err))
	}
	a.scheduler.Start()
	logger.Log.Info("Expiration sweeper scheduled", zap.String("schedule", cfg.Enrollment.SweepSchedule))
}

// watchConfig 配置热更新，目前只调整日志级别
func (a *App) watchConfig(configDir string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel

	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetMode(cfg.Server.Mode)
	})

	go func() {
		err := configwatcher.WatchConfig(ctx, filepath.Join(configDir, "config.yaml"), func(cfg *config.Config) {
			for _, callback := range a.configCallbacks {
				callback(cfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// release 模式默认不自动迁移，需显式指定 -migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// Redis 可选：未启用或连接失败时通知只写日志，清理任务不加锁
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Error("Failed to initialize redis, continuing without it", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, app.Redis)
	app.services = services
	controllers := app.initControllers(services, db, app.Redis)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	app.startBackgroundTasks(services, cfg)
	app.watchConfig(configDir)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close 停止定时任务并等待在途通知发送完成
func (a *App) Close(ctx context.Context) {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.services != nil {
		a.services.enrollment.Wait()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
