package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/dashboard"
	"routedesk/internal/fleetapi"
	"routedesk/internal/middleware"
	"routedesk/internal/models"
)

type toggleTripInput struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// ListTrips returns every trip.
func (a *API) ListTrips(c *gin.Context) {
	trips, err := a.Fleet.ListTrips(c.Request.Context(), middleware.FleetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

// AvailableDrivers returns drivers that can be assigned to a trip.
func (a *API) AvailableDrivers(c *gin.Context) {
	drivers, err := a.Fleet.AvailableDrivers(c.Request.Context(), middleware.FleetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drivers": drivers})
}

// AvailableBuses returns buses that can be assigned to a trip.
func (a *API) AvailableBuses(c *gin.Context) {
	buses, err := a.Fleet.AvailableBuses(c.Request.Context(), middleware.FleetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses})
}

// ToggleTrip sets a trip's active flag and returns the refreshed list.
func (a *API) ToggleTrip(c *gin.Context) {
	var input toggleTripInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isActive is required"})
		return
	}

	ctx := c.Request.Context()
	sess := middleware.FleetSession(c)
	id := c.Param("id")
	if err := a.Fleet.ToggleTrip(ctx, sess, id, *input.IsActive); err != nil {
		respondError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"trip_id": id, "is_active": *input.IsActive}).Info("Trip toggled")

	trips, err := a.Fleet.ListTrips(ctx, sess)
	if err != nil {
		logrus.WithError(err).Warn("Trip list refresh failed after toggle")
		trips = nil
	}
	c.JSON(http.StatusOK, gin.H{"_id": id, "isActive": *input.IsActive, "trips": trips})
}

// Dashboard returns the overview counts.
func (a *API) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, dashboard.Build(c.Request.Context(), a.Fleet, middleware.FleetSession(c)))
}

// findTrip looks a trip up in the full list; the fleet API has no single-trip
// read.
func (a *API) findTrip(ctx context.Context, sess fleetapi.Session, id string) (models.Trip, error) {
	trips, err := a.Fleet.ListTrips(ctx, sess)
	if err != nil {
		return models.Trip{}, err
	}
	for _, t := range trips {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Trip{}, apperrors.ErrNotFound
}
