package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jack571754/product-sales-planning/internal/config"
	"github.com/jack571754/product-sales-planning/internal/middleware"
	"github.com/jack571754/product-sales-planning/internal/planning/entity"
	"github.com/jack571754/product-sales-planning/internal/planning/handler"
	"github.com/jack571754/product-sales-planning/internal/planning/service"
)

// 构建信息，由 ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting product-sales-planning service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.Store{},
		&entity.StoreAttribute{},
		&entity.Product{},
		&entity.ProductMechanism{},
		&entity.ProductMechanismItem{},
		&entity.PlanTask{},
		&entity.TaskStoreAssignment{},
		&entity.CommoditySchedule{},
		&entity.ApprovalWorkflow{},
		&entity.ApprovalStep{},
		&entity.ApproverStoreAssignment{},
		&entity.ApproverStoreAssignmentItem{},
		&entity.ApprovalHistory{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 初始化Redis（失败时降级，相关缓存自动停用）
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		rdb = nil
	}

	// 初始化MinIO（未配置时降级，导出归档自动停用）
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			zapLogger.Warn("MinIO unavailable, export archiving disabled", zap.Error(err))
			minioClient = nil
		}
	}

	// 初始化服务与处理器
	services := service.NewServices(service.Options{
		DB:          db,
		Redis:       rdb,
		MinIO:       minioClient,
		MinIOBucket: cfg.MinIO.Bucket,
		Logger:      zapLogger,
	})
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 审批流
		approval := api.Group("/approval")
		{
			approval.POST("/submit", h.Approval.Submit)
			approval.POST("/act", h.Approval.Act)
			approval.POST("/withdraw", h.Approval.Withdraw)
			approval.GET("/history", h.Approval.History)
			approval.GET("/workflow-state", h.Approval.WorkflowState)
			approval.GET("/can-edit", h.Approval.CheckCanEdit)
			approval.GET("/pending", h.Approval.Pending)
		}

		// 商品计划
		commodity := api.Group("/commodity")
		{
			commodity.GET("/data", h.Commodity.GetData)
			commodity.GET("/products", h.Commodity.ProductDialogList)
			commodity.GET("/mechanisms", h.Commodity.ListMechanisms)
			commodity.POST("/bulk-insert", h.Commodity.BulkInsert)
			commodity.POST("/apply-mechanisms", h.Commodity.ApplyMechanisms)
			commodity.POST("/batch-quantity", h.Commodity.BatchUpdateQuantity)
			commodity.POST("/batch-delete", h.Commodity.BatchDelete)
			commodity.POST("/batch-delete-by-codes", h.Commodity.BatchDeleteByCodes)
			commodity.POST("/month-quantity", h.Commodity.UpdateMonthQuantity)
			commodity.POST("/batch-month-quantities", h.Commodity.BatchUpdateMonthQuantities)
			commodity.POST("/cleanup-duplicates",
				middleware.RequireRole(entity.RoleAdmin), h.Commodity.CleanupDuplicates)
		}

		// 审批流程配置（管理员）
		workflows := api.Group("/workflows")
		workflows.Use(middleware.RequireRole(entity.RoleAdmin))
		{
			workflows.GET("", h.Workflow.List)
			workflows.GET("/:id", h.Workflow.Get)
			workflows.POST("", h.Workflow.Create)
			workflows.PUT("/:id", h.Workflow.Update)
			workflows.DELETE("/:id", h.Workflow.Delete)
		}

		// 审批人店铺分配（管理员）
		assignments := api.Group("/approver-assignments")
		assignments.Use(middleware.RequireRole(entity.RoleAdmin))
		{
			assignments.GET("", h.Workflow.ListAssignments)
			assignments.POST("", h.Workflow.CreateAssignment)
			assignments.PUT("/:id", h.Workflow.UpdateAssignment)
			assignments.DELETE("/:id", h.Workflow.DeleteAssignment)
		}

		// 看板与基础数据
		api.GET("/dashboard/filter-options", h.Dashboard.FilterOptions)
		api.GET("/dashboard/task-progress/:task_id", h.Dashboard.TaskProgress)
		api.GET("/tasks", h.Dashboard.ListTasks)
		api.GET("/stores", h.Dashboard.ListStores)

		// 导入导出
		export := api.Group("/export")
		{
			export.GET("/template", h.Export.DownloadTemplate)
			export.GET("/commodity", h.Export.ExportData)
			export.POST("/import", h.Export.ImportData)
		}
	}
}
