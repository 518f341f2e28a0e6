package app

import (
	"ai_tutor_backend/docs"
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/internal/middleware"
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/pkg/monitoring"
	"ai_tutor_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)
		authGroup.PUT("/profile", c.user.UpdateProfile)

		a.registerTeacherRoutes(authGroup, c)
		a.registerStudentRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	api := router.Group("/api")
	{
		api.GET("/health", c.health.Health)
		api.POST("/register", c.auth.Register)
		api.POST("/login", c.auth.Login)
	}

	// 转写稿接收端点：浏览器插件无Cookie无登录态，放开CORS，
	// 按请求体里的课程码限流
	ingest := router.Group("/api/ingest")
	ingest.Use(security.PublicCORS())
	ingest.Use(middleware.BodyKeyRateLimiter(middleware.BodyKeyPolicy{
		Window:      cfg.Ingest.RateWindow(),
		MaxRequests: cfg.Ingest.MaxRequests,
		KeyFunc:     middleware.TranscriptKeyFunc,
		Message:     "提交过于频繁，请稍后重试",
	}))
	{
		ingest.POST("/transcript", c.transcript.Ingest)
	}
}

func (a *App) registerTeacherRoutes(authGroup *gin.RouterGroup, c *controllers) {
	teacher := authGroup.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/courses", c.course.CreateCourse)
		teacher.GET("/courses", c.course.ListCourses)
		teacher.GET("/courses/:id", c.course.GetCourse)
		teacher.PUT("/courses/:id", c.course.UpdateCourse)
		teacher.DELETE("/courses/:id", c.course.DeleteCourse)
		teacher.GET("/courses/:id/lessons", c.lesson.ListLessons)
		teacher.PUT("/courses/:id/lessons/reorder", c.lesson.ReorderLessons)

		teacher.GET("/lessons/:id", c.lesson.GetLesson)
		teacher.DELETE("/lessons/:id", c.lesson.DeleteLesson)
		teacher.POST("/lessons/:id/summary/regenerate", c.lesson.RegenerateSummary)
		teacher.POST("/lessons/:id/recording", c.lesson.UploadRecording)

		teacher.GET("/transcripts", c.transcript.ListPending)
		teacher.GET("/transcripts/:id", c.transcript.GetPending)
		teacher.DELETE("/transcripts/:id", c.transcript.DeletePending)
		teacher.POST("/transcripts/:id/process", c.transcript.Process)
	}
}

func (a *App) registerStudentRoutes(authGroup *gin.RouterGroup, c *controllers) {
	student := authGroup.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.POST("/enroll", c.course.Enroll)
		student.GET("/courses", c.course.ListEnrolled)
		student.GET("/courses/:id", c.course.GetEnrolled)
		student.GET("/courses/:id/lessons", c.lesson.ListStudentLessons)

		student.GET("/lessons/:id", c.lesson.GetStudentLesson)
		student.POST("/lessons/:id/tutor/ask", c.tutor.Ask)
		student.GET("/lessons/:id/tutor/history", c.tutor.History)
		student.GET("/lessons/:id/ws", c.tutor.ServeWs)
	}
}

func (a *App) registerAdminRoutes(authGroup *gin.RouterGroup, c *controllers) {
	admin := authGroup.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.ListUsers)
		admin.PUT("/users/:id/disabled", c.user.SetDisabled)
	}
}
