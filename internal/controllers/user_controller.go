package controllers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"routedesk/internal/middleware"
	"routedesk/internal/models"
)

// UsersPerPage is the page size of the driver and passenger tables.
const UsersPerPage = 7

type userPage struct {
	Users      []models.User `json:"users"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// ListDrivers returns one page of users with the driver role.
func (a *API) ListDrivers(c *gin.Context) {
	a.listUsersByRole(c, models.RoleDriver)
}

// ListPassengers returns one page of users with the passenger role.
func (a *API) ListPassengers(c *gin.Context) {
	a.listUsersByRole(c, models.RolePassenger)
}

func (a *API) listUsersByRole(c *gin.Context, role string) {
	page := 1
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page."})
			return
		}
		page = n
	}

	users, err := a.Fleet.ListUsers(c.Request.Context(), middleware.FleetSession(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paginate(filterByRole(users, role), page))
}

// filterByRole keeps users with role, newest first.
func filterByRole(users []models.User, role string) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func paginate(users []models.User, page int) userPage {
	total := len(users)
	totalPages := (total + UsersPerPage - 1) / UsersPerPage

	start := (page - 1) * UsersPerPage
	if start > total {
		start = total
	}
	end := start + UsersPerPage
	if end > total {
		end = total
	}

	return userPage{
		Users:      users[start:end],
		Page:       page,
		PerPage:    UsersPerPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// GetUser returns one user.
func (a *API) GetUser(c *gin.Context) {
	user, err := a.Fleet.GetUser(c.Request.Context(), middleware.FleetSession(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ToggleUserStatus flips a user between approved and pending.
func (a *API) ToggleUserStatus(c *gin.Context) {
	ctx := c.Request.Context()
	sess := middleware.FleetSession(c)
	id := c.Param("id")

	user, err := a.Fleet.GetUser(ctx, sess, id)
	if err != nil {
		respondError(c, err)
		return
	}

	next := models.StatusApproved
	if user.Status == models.StatusApproved {
		next = models.StatusPending
	}
	if err := a.Fleet.UpdateUserStatus(ctx, sess, id, next); err != nil {
		respondError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": id, "status": next}).Info("User status changed")
	c.JSON(http.StatusOK, gin.H{"_id": id, "status": next})
}

// DeleteUser removes a user.
func (a *API) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := a.Fleet.DeleteUser(c.Request.Context(), middleware.FleetSession(c), id); err != nil {
		respondError(c, err)
		return
	}
	logrus.WithField("user_id", id).Info("User deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
