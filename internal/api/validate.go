package api

import (
	"fmt"

	"riderev/internal/model"
	"riderev/internal/zonemap"
)

func validatePlanRequest(req *model.PlanRequest, zm *zonemap.Map) error {
	if req.Shift.StartTime < 0 {
		return fmt.Errorf("shift.startTime must be >= 0")
	}
	if req.Shift.EndTime <= req.Shift.StartTime {
		return fmt.Errorf("shift.endTime must be after shift.startTime")
	}
	if !zm.Contains(req.Shift.StartZone) {
		return fmt.Errorf("unknown shift.startZone: %s", req.Shift.StartZone)
	}
	if !zm.Contains(req.Shift.EndZone) {
		return fmt.Errorf("unknown shift.endZone: %s", req.Shift.EndZone)
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.NodeLimit < 0 {
		return fmt.Errorf("nodeLimit must be >= 0")
	}
	return nil
}

// resolveRequest turns an import row into a RideRequest, snapping raw
// coordinates to their nearest zones when no zone ids were given.
func resolveRequest(in model.RideRequestIn, zm *zonemap.Map) (model.RideRequest, error) {
	origin := in.Origin
	if origin == "" && in.OriginLoc != nil {
		origin = zm.Nearest(in.OriginLoc.Lat, in.OriginLoc.Lng)
	}
	dest := in.Destination
	if dest == "" && in.DestLoc != nil {
		dest = zm.Nearest(in.DestLoc.Lat, in.DestLoc.Lng)
	}
	if origin == "" || dest == "" {
		return model.RideRequest{}, fmt.Errorf("origin and destination (zone or location) are required")
	}
	return model.RideRequest{
		Origin:      origin,
		Destination: dest,
		AvailableAt: in.AvailableAt,
		EndAt:       in.EndAt,
		Price:       in.Price,
		Duration:    in.Duration,
	}, nil
}
