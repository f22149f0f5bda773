package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub/controller"
	"studyhub/service"
)

type RouterConfig struct {
	CORSOrigins []string

	Tokens      *service.TokenService
	Users       *service.UserService
	Assignments *service.AssignmentService
	Assistant   *service.AssistantService
	Uploads     *service.UploadStore
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	controller.RegisterValidation()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())
	r.MaxMultipartMemory = 32 << 20

	auth := controller.NewAuthController(cfg.Tokens, cfg.Users)
	user := controller.NewUserController(cfg.Users)
	assignment := controller.NewAssignmentController(cfg.Assignments)
	assistant := controller.NewAssistantController(cfg.Assistant)

	r.Static("/uploads", cfg.Uploads.Root())

	v1 := r.Group("/api")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
		})

		v1.POST("/users/sync", user.Sync)
		v1.POST("/users/register", user.Register)
		v1.POST("/users/login", user.Login)
	}

	protected := v1.Group("")
	protected.Use(auth.TokenValid)
	{
		//Refresh the token
		protected.POST("/token/refresh", auth.Refresh)

		protected.GET("/users/me", user.Me)
		protected.PUT("/users/profile", user.UpdateProfile)

		protected.GET("/assignments", assignment.List)
		protected.POST("/assignments", assignment.Create)
		protected.GET("/assignments/:id", assignment.Get)
		protected.PUT("/assignments/:id", assignment.Update)
		protected.DELETE("/assignments/:id", assignment.Delete)

		protected.POST("/ai/generate", assistant.Generate)
		protected.GET("/ai/history/:assignmentId", assistant.History)
	}

	return r
}
