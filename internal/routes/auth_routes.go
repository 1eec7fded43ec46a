package routes

import (
	"github.com/gin-gonic/gin"

	"routedesk/internal/controllers"
)

func AuthRoutes(r *gin.Engine, api *controllers.API) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Auth.RequireAuth(), api.Logout)
		auth.GET("/me", api.Auth.RequireAuth(), api.Me)
	}
}
