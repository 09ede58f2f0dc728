package store

import (
	"context"
	"errors"

	"riderev/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Ride requests
	CreateRequests(ctx context.Context, tenantID string, reqs []model.RideRequest) (created, skipped int, err error)
	ListRequests(ctx context.Context, tenantID, cursor string, limit int) (items []model.RideRequest, nextCursor string, err error)
	GetRequests(ctx context.Context, tenantID string, ids []string) ([]model.RideRequest, error)

	// Plans
	SavePlan(ctx context.Context, tenantID string, p model.Plan) error
	GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error)
	ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error)

	// Exported solver models (LP text), one per plan
	SavePlanModel(ctx context.Context, tenantID, planID string, lp []byte) error
	GetPlanModel(ctx context.Context, tenantID, planID string) ([]byte, error)
}

var ErrNotFound = errors.New("not found")
