package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"routedesk/internal/fleetapi"
	"routedesk/internal/models"
)

// Context keys set by RequireAuth.
const (
	ContextSession = "session"
	ContextUserID  = "user_id"
	ContextRole    = "role"
)

// SessionStore looks sessions up by id.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
}

// Claims are carried by our access tokens. The upstream token stays in the
// session row; only its id travels.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and checks access tokens.
type Auth struct {
	secret   []byte
	sessions SessionStore
}

func NewAuth(secret string, sessions SessionStore) *Auth {
	return &Auth{secret: []byte(secret), sessions: sessions}
}

// GenerateToken signs a token for sess that expires with it.
func (a *Auth) GenerateToken(sess *models.Session) (string, error) {
	claims := Claims{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Role:      sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies tokenStr.
func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RequireAuth ensures a valid token for a live session is present. Browsers
// cannot set headers on a websocket upgrade, so a token query parameter is
// accepted too.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			tokenString = q
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		sess, err := a.sessions.GetSession(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
			return
		}

		// Store session in context for downstream handlers
		c.Set(ContextSession, sess)
		c.Set(ContextUserID, sess.UserID)
		c.Set(ContextRole, sess.Role)
		c.Next()
	}
}

// RequireAuthWithRole ensures the token is valid and the user has a specific role
func (a *Auth) RequireAuthWithRole(requiredRole string) gin.HandlerFunc {
	auth := a.RequireAuth()
	return func(c *gin.Context) {
		auth(c)
		if c.IsAborted() {
			return
		}

		if role := c.GetString(ContextRole); role != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session RequireAuth stored.
func CurrentSession(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*models.Session)
	return sess, ok
}

// FleetSession returns the fleet API credential for the current request.
func FleetSession(c *gin.Context) fleetapi.Session {
	sess, ok := CurrentSession(c)
	if !ok {
		return fleetapi.Session{}
	}
	return fleetapi.Session{Token: sess.UpstreamToken}
}
