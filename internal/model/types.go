package model

// Core domain types shared by the planner, store, and API.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RideRequest is one candidate ride. Times are minutes from midnight of the
// service day; the ride is valid to start anywhere in [AvailableAt, EndAt].
type RideRequest struct {
	ID          string  `json:"id"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	AvailableAt float64 `json:"availableAt"`
	EndAt       float64 `json:"endAt"`
	Price       float64 `json:"price"`
	Duration    float64 `json:"duration"`
}

// RideRequestIn is the import form: zones may be given directly or as raw
// coordinates to be snapped to the nearest zone.
type RideRequestIn struct {
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	OriginLoc   *GeoPoint `json:"originLoc,omitempty"`
	DestLoc     *GeoPoint `json:"destLoc,omitempty"`
	AvailableAt float64   `json:"availableAt"`
	EndAt       float64   `json:"endAt"`
	Price       float64   `json:"price"`
	Duration    float64   `json:"duration"`
}

// DriverShift is one driver's working interval and depot zones.
type DriverShift struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	StartZone string  `json:"startZone"`
	EndZone   string  `json:"endZone"`
}

type PlanRequest struct {
	TenantID     string      `json:"tenantId,omitempty"`
	Shift        DriverShift `json:"shift"`
	RequestIDs   []string    `json:"requestIds,omitempty"`
	TimeBudgetMs int         `json:"timeBudgetMs,omitempty"`
	NodeLimit    int         `json:"nodeLimit,omitempty"`
}

type EventKind string

const (
	EventRide      EventKind = "ride"
	EventEmptyMove EventKind = "empty_move"
	EventWait      EventKind = "wait"
)

// ItineraryEvent is one leg of the reconstructed itinerary. Revenue is zero
// for non-ride events, cost is zero for ride and wait events.
type ItineraryEvent struct {
	Seq         int       `json:"seq"`
	Kind        EventKind `json:"kind"`
	RequestID   string    `json:"requestId,omitempty"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	OriginLoc   GeoPoint  `json:"originLoc"`
	DestLoc     GeoPoint  `json:"destLoc"`
	StartMin    float64   `json:"startMin"`
	EndMin      float64   `json:"endMin"`
	DurationMin float64   `json:"durationMin"`
	Revenue     float64   `json:"revenue"`
	Cost        float64   `json:"cost"`
}

type PlanSummary struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	EmptyMoveCost float64 `json:"emptyMoveCost"`
	NetProfit     float64 `json:"netProfit"`
	AcceptedRides int     `json:"acceptedRides"`
	OfferedRides  int     `json:"offeredRides"`
}

type SolveStatus string

const (
	StatusOptimal    SolveStatus = "optimal"
	StatusFeasible   SolveStatus = "feasible"
	StatusInfeasible SolveStatus = "infeasible"
	StatusNoSolution SolveStatus = "no_solution"
)

// Plan is a finished optimization run with its reconstructed itinerary.
type Plan struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenantId"`
	Shift         DriverShift      `json:"shift"`
	Status        SolveStatus      `json:"status"`
	ProvenOptimal bool             `json:"provenOptimal"`
	Objective     float64          `json:"objective"`
	Summary       PlanSummary      `json:"summary"`
	Itinerary     []ItineraryEvent `json:"itinerary"`
	SolveMs       int64            `json:"solveMs"`
	Nodes         int              `json:"nodes"`
	CreatedAt     string           `json:"createdAt"`
}
