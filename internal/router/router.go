package router

import (
	"reportrelay/internal/handlers"
	"reportrelay/internal/middleware"
	"reportrelay/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is what the routes need from main.
type Deps struct {
	Reports  *services.ReportService
	APIToken string
	Gatherer prometheus.Gatherer // nil 时不暴露 /metrics
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	// Handlers
	healthHandler := handlers.NewHealthHandler(deps.Reports)
	reportHandler := handlers.NewReportHandler(deps.Reports)
	submissionHandler := handlers.NewSubmissionHandler(deps.Reports)

	api := r.Group("/api")
	{
		// 公共路由 (Public Routes)
		api.GET("/health", healthHandler.Health)             // 健康检查 - 链 ID 与合约地址
		api.GET("/reports/count", reportHandler.Count)       // 链上举报总数
		api.GET("/reports/:id", reportHandler.Get)           // 单条举报详情
		api.GET("/submissions", submissionHandler.List)      // 提交记录分页
		api.GET("/submissions/:hash", submissionHandler.Get) // 按交易哈希查询提交记录

		// 受保护路由 (Protected Routes)
		api.POST("/reports", middleware.TokenRequired(deps.APIToken), reportHandler.Submit) // 提交举报上链
	}

	// 监控指标 (Metrics)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
