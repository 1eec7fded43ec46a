package routes

import (
	"github.com/gin-gonic/gin"

	"routedesk/internal/controllers"
	"routedesk/internal/models"
)

func AdminRoutes(r *gin.Engine, api *controllers.API) {
	admin := r.Group("/admin")
	admin.Use(api.Auth.RequireAuthWithRole(models.RoleAdmin))
	{
		admin.GET("/dashboard", api.Dashboard)

		admin.GET("/drivers", api.ListDrivers)
		admin.GET("/passengers", api.ListPassengers)
		admin.GET("/users/:id", api.GetUser)
		admin.PUT("/users/:id/status", api.ToggleUserStatus)
		admin.DELETE("/users/:id", api.DeleteUser)

		admin.GET("/trips", api.ListTrips)
		admin.GET("/trips/available-drivers", api.AvailableDrivers)
		admin.GET("/trips/available-buses", api.AvailableBuses)
		admin.PUT("/trips/:id/toggle", api.ToggleTrip)

		admin.GET("/places", api.SearchPlaces)
	}
}
