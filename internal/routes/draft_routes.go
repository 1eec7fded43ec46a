package routes

import (
	"github.com/gin-gonic/gin"

	"routedesk/internal/controllers"
	"routedesk/internal/models"
)

func DraftRoutes(r *gin.Engine, api *controllers.API) {
	drafts := r.Group("/admin/drafts")
	drafts.Use(api.Auth.RequireAuthWithRole(models.RoleAdmin))
	{
		drafts.GET("", api.ListDrafts)
		drafts.POST("", api.CreateDraft)
		drafts.GET("/:id", api.GetDraft)
		drafts.PATCH("/:id", api.UpdateDraftFields)
		drafts.DELETE("/:id", api.DiscardDraft)

		drafts.POST("/:id/stops", api.AddStop)
		drafts.POST("/:id/stops/move", api.MoveStop)
		drafts.POST("/:id/stops/place", api.AddStopFromPlace)
		drafts.POST("/:id/stops/point", api.AddStopAtPoint)
		drafts.PUT("/:id/stops/:index", api.UpdateStop)
		drafts.DELETE("/:id/stops/:index", api.RemoveStop)

		drafts.POST("/:id/compute", api.ComputeRoute)
		drafts.POST("/:id/save", api.SaveDraft)
		drafts.GET("/:id/preview", api.PreviewRoute)
	}
}
