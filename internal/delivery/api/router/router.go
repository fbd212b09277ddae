// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"usermgmt/internal/delivery/api/middleware"
	"usermgmt/internal/delivery/api/router/handler"
)

type RouterParams struct {
	fx.In

	UserHandler    *handler.UserHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	userHandler    *handler.UserHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
func NewRouter(params RouterParams) *router {
	return &router{
		userHandler:    params.UserHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	apiV1 := e.Group("/api/v1")
	apiV1.POST("/login", r.userHandler.Login)

	authenticated := r.authMiddleware.Authenticate
	usersGroup := apiV1.Group("/users")
	{
		usersGroup.POST("", r.userHandler.RegisterUser)
		usersGroup.GET("", r.userHandler.ListUsers, authenticated)
		usersGroup.GET("/:id", r.userHandler.GetUser, authenticated)
		usersGroup.PUT("/:id", r.userHandler.UpdateUser, authenticated)
		usersGroup.DELETE("/:id", r.userHandler.DeleteUser, authenticated)
	}
}
