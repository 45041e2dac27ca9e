package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 2. 学员接口
		a.registerLearnerRoutes(authGroup, c)

		// 3. 教师/管理员接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/enrollments/my", c.enrollment.GetMyEnrollments)

	courses := group.Group("/courses/:courseId")
	{
		courses.GET("/progress", c.access.GetCourseProgress)
		courses.GET("/access", c.access.CheckCourseAccess)
		courses.GET("/lessons/:lessonId/access", c.access.CheckLessonAccess)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Teacher))
	{
		enrollments := admin.Group("/enrollments")
		{
			enrollments.POST("", c.enrollment.CreateEnrollment)
			enrollments.GET("", c.enrollment.ListEnrollments)
			enrollments.POST("/manual", c.enrollment.CreateManualEnrollment)
			enrollments.POST("/bulk", c.enrollment.BulkEnroll)
			enrollments.POST("/cleanup-expired", c.enrollment.CleanupExpiredEnrollments)
			enrollments.GET("/stats", c.enrollment.GetEnrollmentStats)

			enrollments.GET("/:id", c.enrollment.GetEnrollment)
			enrollments.PATCH("/:id", c.enrollment.UpdateEnrollment)
			enrollments.DELETE("/:id", c.enrollment.DeleteEnrollment)
			enrollments.POST("/:id/confirm-payment", c.enrollment.ConfirmPayment)
			enrollments.POST("/:id/activate", c.enrollment.ActivateEnrollment)
			enrollments.POST("/:id/suspend", c.enrollment.SuspendEnrollment)
			enrollments.POST("/:id/complete", c.enrollment.CompleteEnrollment)
			enrollments.POST("/:id/extend", c.enrollment.ExtendEnrollment)
		}

		admin.GET("/courses/:courseId/enrollment-stats", c.enrollment.GetCourseEnrollmentStats)
	}
}
