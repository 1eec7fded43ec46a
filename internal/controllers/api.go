package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/directions"
	"routedesk/internal/fleetapi"
	"routedesk/internal/middleware"
	"routedesk/internal/models"
	"routedesk/internal/routeform"
)

// SessionStore is the session table the auth handlers write to.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *models.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// DraftLister lists the stored drafts of one user.
type DraftLister interface {
	ListDrafts(ctx context.Context, ownerID string) ([]models.DraftRecord, error)
}

// API holds what the handlers need. Handlers are methods so tests can build
// one around fakes.
type API struct {
	Fleet      *fleetapi.Client
	Sessions   SessionStore
	Auth       *middleware.Auth
	Drafts     *routeform.Registry
	DraftStore DraftLister
	Finder     *directions.StopFinder
	Hub        *DraftHub
	SessionTTL time.Duration
	Ping       func(ctx context.Context) error
}

// respondError writes err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	var (
		ext  *apperrors.ExternalServiceError
		nerr *apperrors.NetworkError
	)

	switch {
	case apperrors.IsValidation(err):
		msg, field := validationDetail(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg, "field": field})
	case errors.Is(err, apperrors.ErrBusy), errors.Is(err, apperrors.ErrStaleResult):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &ext):
		c.JSON(http.StatusBadGateway, gin.H{"error": ext.Error(), "service": ext.Service, "status": ext.Status})
	case fleetapi.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
	case errors.As(err, &nerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": nerr.Error(), "status": nerr.StatusCode})
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// validationDetail picks the message and offending field out of a
// validation-class error, however deeply it is wrapped.
func validationDetail(err error) (string, string) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return verr.Error(), verr.Field
	}
	var short *apperrors.InsufficientStopsError
	if errors.As(err, &short) {
		return short.Error(), "stops"
	}
	return err.Error(), ""
}

// intParam reads a non-negative integer path parameter.
func intParam(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v < 0 {
		return 0, apperrors.Validation(name, "must be a non-negative integer")
	}
	return v, nil
}

// Healthz reports whether the local database answers.
func (a *API) Healthz(c *gin.Context) {
	if a.Ping != nil {
		if err := a.Ping(c.Request.Context()); err != nil {
			logrus.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "drafts": a.Drafts.Len()})
}
