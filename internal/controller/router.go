package controller

import (
	"github.com/gin-gonic/gin"

	"ojudge/internal/service"
)

// NewRouter builds the gin engine with every route mounted at the root,
// matching the paths existing clients use.
func NewRouter(jobs *service.JudgeService, users *service.UserService, contests *service.ContestService, shutdown func()) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(TraceContextMiddleware())
	router.Use(RequestLogger())

	jobController := NewJobController(jobs)
	router.POST("/jobs", jobController.Create)
	router.GET("/jobs", jobController.List)
	router.GET("/jobs/:id", jobController.Get)
	router.PUT("/jobs/:id", jobController.Rejudge)
	router.DELETE("/jobs/:id", jobController.Cancel)

	userController := NewUserController(users)
	router.POST("/users", userController.Save)
	router.GET("/users", userController.List)

	contestController := NewContestController(contests)
	router.POST("/contests", contestController.Save)
	router.GET("/contests", contestController.List)
	router.GET("/contests/:id", contestController.Get)
	router.GET("/contests/:id/ranklist", contestController.Ranklist)

	adminController := NewAdminController(shutdown)
	router.POST("/internal/exit", adminController.Exit)

	return router
}
