// Package plan is the request selection and sequencing engine: it translates
// a ride catalog, one driver shift, and the zone map into a mixed-integer
// model, hands that to a solving capability, and reconstructs the solved
// assignment into a timestamped itinerary.
package plan

import (
	"errors"

	"riderev/internal/mip"
	"riderev/internal/model"
	"riderev/internal/zonemap"
)

var (
	// ErrInvalidInput marks malformed shifts or requests, caught before any
	// model is built.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInfeasible marks a model the solving capability proved unsatisfiable.
	ErrInfeasible = errors.New("model infeasible")
	// ErrNoSolution marks a solve cut off before any feasible assignment.
	ErrNoSolution = errors.New("no solution within limit")
	// ErrInconsistent marks a solved assignment that violates the encoded
	// constraints or does not decode into a single connected path.
	ErrInconsistent = errors.New("inconsistent assignment")
)

// start is the virtual node preceding the first action.
const start = -1

type seqKey struct{ From, To int }

// moveKey identifies a deadhead leg executed right after node After leaves
// its exit zone. The origin zone is implied by the node.
type moveKey struct {
	After int
	To    string
}

// Model is the full variable/constraint set for one optimization run. It is
// built fresh per run and never mutated afterwards.
type Model struct {
	Rides   []model.RideRequest // catalog order, unreachable rides pruned
	Offered int
	Shift   model.DriverShift
	Map     *zonemap.Map
	MIP     *mip.Model
	BigM    float64

	Succ      [][]int // eligible successor ride indices per ride
	StartSucc []int   // rides eligible as the first action
	SeqVars   map[seqKey]mip.VarID
	MoveVars  map[moveKey]mip.VarID
	MoveOrder []moveKey // creation order, keeps encoding deterministic
	StartVars []mip.VarID // continuous start-time var per ride
}

// exitZone is where the agent stands after finishing node i.
func (m *Model) exitZone(i int) string {
	if i == start {
		return m.Shift.StartZone
	}
	return m.Rides[i].Destination
}

// earliestDeparture is a lower bound on the minute the agent can leave node i.
func (m *Model) earliestDeparture(i int) float64 {
	if i == start {
		return m.Shift.StartTime
	}
	r := m.Rides[i]
	arrive := m.Shift.StartTime + m.Map.TravelTime(m.Shift.StartZone, r.Origin)
	if r.AvailableAt > arrive {
		arrive = r.AvailableAt
	}
	return arrive + r.Duration
}
