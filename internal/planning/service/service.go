package service

import (
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jack571754/product-sales-planning/internal/planning/repository"
)

// Services 服务集合
type Services struct {
	Workflow  *WorkflowService
	Approval  *ApprovalService
	Access    *AccessService
	Commodity *CommodityService
	Export    *ExportService
	Dashboard *DashboardService
	Cleanup   *CleanupService
}

// Options 服务依赖项
// Redis 与 MinIO 可为 nil，对应能力自动降级。
type Options struct {
	DB          *gorm.DB
	Redis       *redis.Client
	MinIO       *minio.Client
	MinIOBucket string
	Logger      *zap.Logger
}

// NewServices 创建服务集合
func NewServices(opts Options) *Services {
	repos := repository.NewRepositories(opts.DB)

	workflow := NewWorkflowService(opts.DB, repos)
	access := NewAccessService(opts.DB, repos)
	commodity := NewCommodityService(opts.DB, repos, access, opts.Redis)

	return &Services{
		Workflow:  workflow,
		Approval:  NewApprovalService(opts.DB, repos, workflow),
		Access:    access,
		Commodity: commodity,
		Export:    NewExportService(opts.DB, repos, commodity, access, opts.MinIO, opts.MinIOBucket, opts.Logger),
		Dashboard: NewDashboardService(opts.DB, repos, opts.Redis),
		Cleanup:   NewCleanupService(opts.DB, repos, opts.Logger),
	}
}
