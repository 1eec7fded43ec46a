// Package dashboard computes the admin overview counts.
package dashboard

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"routedesk/internal/fleetapi"
	"routedesk/internal/models"
)

// Source is the part of the fleet API the dashboard reads.
type Source interface {
	ListUsers(ctx context.Context, s fleetapi.Session) ([]models.User, error)
	ListBuses(ctx context.Context, s fleetapi.Session) ([]models.Bus, error)
	ListTrips(ctx context.Context, s fleetapi.Session) ([]models.Trip, error)
}

// Summary is the overview shown on the admin landing page.
type Summary struct {
	TotalDrivers    int `json:"totalDrivers"`
	TotalPassengers int `json:"totalPassengers"`
	ActiveRoutes    int `json:"activeRoutes"`
	ActiveBuses     int `json:"activeBuses"`

	Users  int `json:"users"`
	Buses  int `json:"buses"`
	Routes int `json:"routes"`
}

// Build fetches users, buses and trips in parallel and counts them. A fetch
// that fails counts as an empty list so one bad upstream call does not blank
// the whole page.
func Build(ctx context.Context, src Source, s fleetapi.Session) Summary {
	var (
		users []models.User
		buses []models.Bus
		trips []models.Trip
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users = fetch(gctx, "users", func(ctx context.Context) ([]models.User, error) { return src.ListUsers(ctx, s) })
		return nil
	})
	g.Go(func() error {
		buses = fetch(gctx, "buses", func(ctx context.Context) ([]models.Bus, error) { return src.ListBuses(ctx, s) })
		return nil
	})
	g.Go(func() error {
		trips = fetch(gctx, "trips", func(ctx context.Context) ([]models.Trip, error) { return src.ListTrips(ctx, s) })
		return nil
	})
	// fetch logs its own failures and returns an empty list, so no goroutine
	// ever reports an error and Wait only joins them.
	_ = g.Wait()

	sum := Summary{Users: len(users), Buses: len(buses), Routes: len(trips)}
	for _, u := range users {
		switch u.Role {
		case models.RoleDriver:
			sum.TotalDrivers++
		case models.RolePassenger:
			sum.TotalPassengers++
		}
	}
	for _, t := range trips {
		if t.IsActive {
			sum.ActiveRoutes++
		}
	}
	for _, b := range buses {
		if b.IsActive {
			sum.ActiveBuses++
		}
	}
	return sum
}

func fetch[T any](ctx context.Context, what string, fn func(context.Context) ([]T, error)) []T {
	out, err := fn(ctx)
	if err != nil {
		logrus.WithError(err).WithField("list", what).Warn("Dashboard fetch failed, counting as empty")
		return nil
	}
	return out
}
