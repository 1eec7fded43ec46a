package routes

import (
	"github.com/gin-gonic/gin"

	"routedesk/internal/controllers"
	"routedesk/internal/models"
)

func WebSocketRoutes(r *gin.Engine, api *controllers.API) {
	wsRoutes := r.Group("/ws")
	wsRoutes.Use(api.Auth.RequireAuthWithRole(models.RoleAdmin))
	{
		// Browsers pass the token as ?token= on the upgrade.
		wsRoutes.GET("/drafts/:id", api.HandleDraftWebSocket)
	}
}
