package plan

import (
	"context"
	"math"
	"time"

	"riderev/internal/model"
)

// Options bounds one solve. A zero TimeLimit means no deadline.
type Options struct {
	TimeLimit time.Duration
	NodeLimit int
}

// Result is the outcome of one solve. Assignment is indexed by mip variable
// id and only meaningful for the optimal/feasible statuses.
type Result struct {
	Status        model.SolveStatus
	ProvenOptimal bool
	Objective     float64
	Assignment    []float64
	Nodes         int
	Elapsed       time.Duration
}

// Solver is the pluggable solving capability. Implementations must honor the
// context and time limit and report the four outcomes distinctly; they must
// not mutate the model.
type Solver interface {
	Solve(ctx context.Context, m *Model, opts Options) (Result, error)
}

// BranchBound is the bundled exact solver: depth-first search over the pruned
// sequence graph with a price-sum upper bound. Successors are explored in
// ascending variable-creation order, so ties between equal-objective
// solutions resolve to the lexicographically smallest ride sequence.
type BranchBound struct{}

func (BranchBound) Solve(ctx context.Context, m *Model, opts Options) (Result, error) {
	began := time.Now()
	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = began.Add(opts.TimeLimit)
	}

	n := len(m.Rides)
	// Doing nothing is always feasible, so the incumbent starts at zero.
	bestProfit := 0.0
	bestPath := []int{}
	truncated := false
	nodes := 0

	unusedPrice := 0.0
	for _, r := range m.Rides {
		unusedPrice += r.Price
	}

	used := make([]bool, n)
	path := make([]int, 0, n)

	var dfs func(last int, loc string, t, profit, remaining float64)
	dfs = func(last int, loc string, t, profit, remaining float64) {
		nodes++
		if opts.NodeLimit > 0 && nodes > opts.NodeLimit {
			truncated = true
			return
		}
		if !deadline.IsZero() && nodes%256 == 0 && time.Now().After(deadline) {
			truncated = true
			return
		}
		if ctx.Err() != nil {
			truncated = true
			return
		}

		// Option: end the shift here. An empty path means the agent never
		// moved, so no return leg is charged.
		endProfit := profit
		if len(path) > 0 && loc != m.Shift.EndZone {
			endProfit -= m.Map.TravelCost(loc, m.Shift.EndZone)
		}
		if endProfit > bestProfit {
			bestProfit = endProfit
			bestPath = append(bestPath[:0], path...)
		}

		succ := m.StartSucc
		if last != start {
			succ = m.Succ[last]
		}
		for _, r := range succ {
			if used[r] {
				continue
			}
			req := m.Rides[r]
			tt := m.Map.TravelTime(loc, req.Origin)
			arrive := t + tt
			if arrive > req.EndAt {
				continue
			}
			startAt := math.Max(arrive, req.AvailableAt)
			finish := startAt + req.Duration
			if finish+m.Map.TravelTime(req.Destination, m.Shift.EndZone) > m.Shift.EndTime {
				continue
			}
			moveCost := 0.0
			if req.Origin != loc {
				if _, ok := m.MoveVars[moveKey{last, req.Origin}]; !ok {
					continue // deadhead pruned from the model
				}
				moveCost = m.Map.TravelCost(loc, req.Origin)
			}
			next := profit + req.Price - moveCost
			rem := remaining - req.Price
			if next+rem <= bestProfit {
				continue // bound: even free remaining rides cannot beat the incumbent
			}
			used[r] = true
			path = append(path, r)
			dfs(r, req.Destination, finish, next, rem)
			path = path[:len(path)-1]
			used[r] = false
			if truncated {
				return
			}
		}
	}
	dfs(start, m.Shift.StartZone, m.Shift.StartTime, 0, unusedPrice)

	res := Result{
		Status:        model.StatusOptimal,
		ProvenOptimal: true,
		Objective:     bestProfit,
		Assignment:    m.assignment(bestPath),
		Nodes:         nodes,
		Elapsed:       time.Since(began),
	}
	if truncated {
		res.Status = model.StatusFeasible
		res.ProvenOptimal = false
	}
	return res, nil
}

// assignment expands a ride sequence into values for every model variable:
// sequence and deadhead indicators along the path, earliest-feasible start
// times for selected rides, and window-opening start times for the rest.
func (m *Model) assignment(path []int) []float64 {
	assign := make([]float64, m.MIP.NumVars())
	for i, r := range m.Rides {
		assign[m.StartVars[i]] = r.AvailableAt
	}
	last := start
	loc := m.Shift.StartZone
	t := m.Shift.StartTime
	for _, r := range path {
		req := m.Rides[r]
		if req.Origin != loc {
			assign[m.MoveVars[moveKey{last, req.Origin}]] = 1
			t += m.Map.TravelTime(loc, req.Origin)
			loc = req.Origin
		}
		startAt := math.Max(t, req.AvailableAt)
		assign[m.StartVars[r]] = startAt
		assign[m.SeqVars[seqKey{last, r}]] = 1
		t = startAt + req.Duration
		loc = req.Destination
		last = r
	}
	if len(path) > 0 && loc != m.Shift.EndZone {
		assign[m.MoveVars[moveKey{last, m.Shift.EndZone}]] = 1
	}
	return assign
}
