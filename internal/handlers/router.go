package handlers

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gosi-lab/predict-service/internal/config"
	"github.com/gosi-lab/predict-service/internal/models"
	"github.com/gosi-lab/predict-service/internal/services"
	"github.com/gosi-lab/predict-service/internal/utils"
)

type HandlerManager struct {
	predictHandler *PredictHandler
	staffHandler   *StaffHandler
	authMiddleware *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		predictHandler: NewPredictHandler(serviceManager.Student(), serviceManager.Submission(), serviceManager.Report(), logger),
		staffHandler:   NewStaffHandler(serviceManager.Recompute(), serviceManager.ImportExport(), logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Student endpoints
		predict := v1.Group("/predict/exams/:exam_id")
		predict.Use(RateLimitMiddleware(rate.Limit(5), 10))
		{
			predict.POST("/register", hm.predictHandler.Register)
			predict.GET("/me", hm.predictHandler.GetMe)
			predict.POST("/subjects/:code/answers", hm.predictHandler.SubmitAnswers)
			predict.GET("/subjects/:code/answers", hm.predictHandler.GetConfirmedAnswers)
			predict.GET("/report", hm.predictHandler.GetReport)
		}

		// Staff endpoints
		staff := v1.Group("/staff/exams/:exam_id")
		staff.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStaff, models.RoleAdmin))
		{
			staff.POST("/recompute", hm.staffHandler.Recompute)
			staff.POST("/answer-key", hm.staffHandler.UploadAnswerKey)
			staff.GET("/export/statistics", hm.staffHandler.ExportStatistics)
			staff.GET("/export/catalog", hm.staffHandler.ExportCatalog)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "predict-service",
		})
	})
}
