package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/middleware"
	"routedesk/internal/models"
)

type loginResponse struct {
	Token string `json:"token"`
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Login forwards the credentials to the fleet API and, on success, opens a
// local session holding the upstream token. The client only ever sees our
// own token.
func (a *API) Login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	up, err := a.Fleet.Login(c.Request.Context(), creds)
	if err != nil {
		msg := "Login failed"
		if nerr := asNetworkError(err); nerr != nil && nerr.StatusCode >= 400 && nerr.StatusCode < 500 {
			if nerr.Message != "" {
				msg = nerr.Message
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		respondError(c, err)
		return
	}
	if up.Token == "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication token missing"})
		return
	}

	now := time.Now()
	sess := &models.Session{
		ID:            uuid.NewString(),
		UserID:        up.ID,
		Name:          up.Name,
		Email:         up.Email,
		Role:          up.Role,
		UpstreamToken: up.Token,
		ExpiresAt:     now.Add(a.SessionTTL),
		CreatedAt:     now,
	}
	if err := a.Sessions.CreateSession(c.Request.Context(), sess); err != nil {
		logrus.WithError(err).Error("Failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	token, err := a.Auth.GenerateToken(sess)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": sess.UserID, "role": sess.Role}).Info("User logged in")
	c.JSON(http.StatusOK, loginResponse{
		Token: token,
		ID:    sess.UserID,
		Name:  sess.Name,
		Email: sess.Email,
		Role:  sess.Role,
	})
}

// Logout ends the current session.
func (a *API) Logout(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	if err := a.Sessions.DeleteSession(c.Request.Context(), sess.ID); err != nil {
		logrus.WithError(err).WithField("session_id", sess.ID).Warn("Failed to delete session")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the logged-in user.
func (a *API) Me(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		respondError(c, apperrors.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"_id":        sess.UserID,
		"name":       sess.Name,
		"email":      sess.Email,
		"role":       sess.Role,
		"expires_at": sess.ExpiresAt,
	})
}

func asNetworkError(err error) *apperrors.NetworkError {
	var nerr *apperrors.NetworkError
	if errors.As(err, &nerr) {
		return nerr
	}
	return nil
}
