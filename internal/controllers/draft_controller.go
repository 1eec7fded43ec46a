package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/directions"
	"routedesk/internal/geo"
	"routedesk/internal/middleware"
	"routedesk/internal/routeform"
	"routedesk/internal/stops"
)

type createDraftInput struct {
	TripID string `json:"trip_id"`
}

type stopInput struct {
	Name      string    `json:"name"`
	Latitude  geo.Input `json:"latitude"`
	Longitude geo.Input `json:"longitude"`
}

type updateStopInput struct {
	Field string    `json:"field" binding:"required"`
	Value geo.Input `json:"value"`
}

type moveStopInput struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

type placeStopInput struct {
	PlaceID string `json:"place_id"`
}

type pointStopInput struct {
	Lat geo.Input `json:"lat"`
	Lng geo.Input `json:"lng"`
}

// CreateDraft opens a route draft. With a trip_id the draft edits that trip;
// without one it starts empty.
func (a *API) CreateDraft(c *gin.Context) {
	var input createDraftInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	owner := c.GetString(middleware.ContextUserID)
	var draft *routeform.Controller
	if input.TripID == "" {
		draft = a.Drafts.Create(owner)
	} else {
		trip, err := a.findTrip(c.Request.Context(), middleware.FleetSession(c), input.TripID)
		if err != nil {
			respondError(c, err)
			return
		}
		draft = a.Drafts.CreateForTrip(owner, trip)
	}

	logrus.WithFields(logrus.Fields{"draft_id": draft.ID(), "trip_id": input.TripID}).Info("Draft opened")
	c.JSON(http.StatusCreated, draft.Snapshot())
}

// draft loads the draft named in the path for the current user, writing the
// error response itself when there is none.
func (a *API) draft(c *gin.Context) (*routeform.Controller, bool) {
	d, err := a.Drafts.Get(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return d, true
}

// GetDraft returns the draft's current snapshot.
func (a *API) GetDraft(c *gin.Context) {
	d, ok := a.draft(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Snapshot())
}

// DiscardDraft closes a draft without saving it.
func (a *API) DiscardDraft(c *gin.Context) {
	d, ok := a.draft(c)
	if !ok {
		return
	}
	a.Drafts.Discard(c.Request.Context(), d.ID())
	c.Status(http.StatusNoContent)
}

// UpdateDraftFields applies a partial update of the form fields.
func (a *API) UpdateDraftFields(c *gin.Context) {
	var f routeform.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.SetFields(f)
	})
}

// AddStop appends a stop typed in by hand.
func (a *API) AddStop(c *gin.Context) {
	var input stopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.AddStop(stops.Stop{Name: input.Name, Latitude: input.Latitude, Longitude: input.Longitude})
	})
}

// UpdateStop sets one field of a stop.
func (a *API) UpdateStop(c *gin.Context) {
	index, err := intParam(c, "index")
	if err != nil {
		respondError(c, err)
		return
	}
	var input updateStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.UpdateStop(index, input.Field, string(input.Value))
	})
}

// RemoveStop deletes a stop.
func (a *API) RemoveStop(c *gin.Context) {
	index, err := intParam(c, "index")
	if err != nil {
		respondError(c, err)
		return
	}
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.RemoveStop(index)
	})
}

// MoveStop reorders a stop.
func (a *API) MoveStop(c *gin.Context) {
	var input moveStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.MoveStop(*input.From, *input.To)
	})
}

// AddStopFromPlace appends the place picked from a search.
func (a *API) AddStopFromPlace(c *gin.Context) {
	var input placeStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, ok := a.draft(c)
	if !ok {
		return
	}
	s, err := a.Finder.FromPlace(c.Request.Context(), input.PlaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	snap, err := d.AddStop(s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// AddStopAtPoint appends a stop where the map was clicked.
func (a *API) AddStopAtPoint(c *gin.Context) {
	var input pointStopInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, ok := geo.PointOf(input.Lat, input.Lng)
	if !ok {
		respondError(c, apperrors.Validation("point", "lat and lng must be valid coordinates"))
		return
	}
	d, ok := a.draft(c)
	if !ok {
		return
	}
	s := a.Finder.AtPoint(c.Request.Context(), p, d.StopCount()+1)
	snap, err := d.AddStop(s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ComputeRoute asks for a route through the draft's stops.
func (a *API) ComputeRoute(c *gin.Context) {
	a.mutate(c, func(d *routeform.Controller) (routeform.Snapshot, error) {
		return d.Compute(c.Request.Context())
	})
}

// SaveDraft persists the draft as a trip. A saved draft is closed and the
// refreshed trip list comes back with it.
func (a *API) SaveDraft(c *gin.Context) {
	d, ok := a.draft(c)
	if !ok {
		return
	}
	snap, trips, err := d.Save(c.Request.Context(), middleware.FleetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}

	// The draft is done; drop it once the response no longer needs it.
	a.Drafts.Discard(context.WithoutCancel(c.Request.Context()), d.ID())
	logrus.WithFields(logrus.Fields{"draft_id": d.ID(), "trip_id": snap.EditID}).Info("Draft saved")
	c.JSON(http.StatusOK, gin.H{"draft": snap, "trips": trips})
}

// PreviewRoute decodes the computed path for the map.
func (a *API) PreviewRoute(c *gin.Context) {
	d, ok := a.draft(c)
	if !ok {
		return
	}
	snap := d.Snapshot()
	if snap.Draft.RoutePolyline == "" {
		respondError(c, apperrors.Validation("routePolyline", "compute the route first"))
		return
	}
	preview, err := geo.BuildPreview(snap.Draft.RoutePolyline)
	if err != nil {
		respondError(c, apperrors.Validation("routePolyline", "%v", err))
		return
	}
	c.JSON(http.StatusOK, preview)
}

// SearchPlaces returns place predictions for ?q=.
func (a *API) SearchPlaces(c *gin.Context) {
	preds, err := a.Finder.Suggest(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if preds == nil {
		preds = []directions.Prediction{}
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds})
}

// ListDrafts returns the current user's open drafts.
func (a *API) ListDrafts(c *gin.Context) {
	if a.DraftStore == nil {
		c.JSON(http.StatusOK, gin.H{"drafts": []routeform.Snapshot{}})
		return
	}
	recs, err := a.DraftStore.ListDrafts(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]routeform.Snapshot, 0, len(recs))
	for i := range recs {
		out = append(out, routeform.SnapshotFromRecord(&recs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"drafts": out})
}

// mutate runs fn against the draft in the path and writes the snapshot.
func (a *API) mutate(c *gin.Context, fn func(*routeform.Controller) (routeform.Snapshot, error)) {
	d, ok := a.draft(c)
	if !ok {
		return
	}
	snap, err := fn(d)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
