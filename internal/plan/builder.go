package plan

import (
	"fmt"
	"math"

	"riderev/internal/catalog"
	"riderev/internal/mip"
	"riderev/internal/model"
	"riderev/internal/zonemap"
)

// Build validates the inputs, prunes rides and ride pairs that can never be
// part of a feasible path, and creates the full variable set. Constraint
// encoding follows in Encode; Build already wires the objective so the model
// is complete for LP export once encoded.
func Build(rides []model.RideRequest, shift model.DriverShift, zm *zonemap.Map) (*Model, error) {
	if zm == nil {
		return nil, fmt.Errorf("%w: nil zone map", ErrInvalidInput)
	}
	if shift.StartTime >= shift.EndTime {
		return nil, fmt.Errorf("%w: shift start %.1f not before end %.1f", ErrInvalidInput, shift.StartTime, shift.EndTime)
	}
	if !zm.Contains(shift.StartZone) {
		return nil, fmt.Errorf("%w: unknown start zone %q", ErrInvalidInput, shift.StartZone)
	}
	if !zm.Contains(shift.EndZone) {
		return nil, fmt.Errorf("%w: unknown end zone %q", ErrInvalidInput, shift.EndZone)
	}
	for _, r := range rides {
		if err := catalog.Validate(r, zm); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	m := &Model{
		Offered:  len(rides),
		Shift:    shift,
		Map:      zm,
		MIP:      mip.New(),
		SeqVars:  map[seqKey]mip.VarID{},
		MoveVars: map[moveKey]mip.VarID{},
	}

	// Prune rides that cannot be reached and served inside the shift at all.
	// They are always-rejected by construction, never handed to the solver.
	for _, r := range rides {
		if m.reachable(r) {
			m.Rides = append(m.Rides, r)
		}
	}

	m.BigM = m.bigM()

	// Continuous start-time variables, bounded by the time window and shift.
	m.StartVars = make([]mip.VarID, len(m.Rides))
	for i, r := range m.Rides {
		hi := math.Min(r.EndAt, shift.EndTime)
		m.StartVars[i] = m.MIP.AddContinuous(fmt.Sprintf("t_%d", i), r.AvailableAt, hi)
	}

	// Sequence variables: virtual start to every kept ride, then every
	// eligible ordered pair. Kept sparse; infeasible pairs get no variable.
	m.StartSucc = make([]int, 0, len(m.Rides))
	for i := range m.Rides {
		m.StartSucc = append(m.StartSucc, i)
		m.SeqVars[seqKey{start, i}] = m.MIP.AddBinary(fmt.Sprintf("seq_start_%d", i))
	}
	m.Succ = make([][]int, len(m.Rides))
	for s := range m.Rides {
		for r := range m.Rides {
			if s == r || !m.eligiblePair(s, r) {
				continue
			}
			m.Succ[s] = append(m.Succ[s], r)
			m.SeqVars[seqKey{s, r}] = m.MIP.AddBinary(fmt.Sprintf("seq_%d_%d", s, r))
		}
	}

	// Empty-move bundles: after each node, deadheads from its exit zone to
	// successor origins, the shift end zone, and nearby zones still reachable
	// in the remaining shift time.
	m.buildMoves(start, m.StartSucc)
	for s := range m.Rides {
		m.buildMoves(s, m.Succ[s])
	}

	m.MIP.SetMaximize(m.objective())
	return m, nil
}

// reachable reports whether ride r can be served at all: reached from the
// start zone inside its window, and finished with enough time to return to
// the end zone before the shift closes.
func (m *Model) reachable(r model.RideRequest) bool {
	arrive := m.Shift.StartTime + m.Map.TravelTime(m.Shift.StartZone, r.Origin)
	if arrive > r.EndAt {
		return false
	}
	startAt := math.Max(arrive, r.AvailableAt)
	back := m.Map.TravelTime(r.Destination, m.Shift.EndZone)
	return startAt+r.Duration+back <= m.Shift.EndTime
}

// eligiblePair reports whether ride r can follow ride s in some feasible
// schedule, using earliest-possible times as the optimistic bound.
func (m *Model) eligiblePair(s, r int) bool {
	a, b := m.Rides[s], m.Rides[r]
	arrive := m.earliestDeparture(s) + m.Map.TravelTime(a.Destination, b.Origin)
	if arrive > b.EndAt {
		return false
	}
	startAt := math.Max(arrive, b.AvailableAt)
	back := m.Map.TravelTime(b.Destination, m.Shift.EndZone)
	return startAt+b.Duration+back <= m.Shift.EndTime
}

func (m *Model) buildMoves(after int, succ []int) {
	from := m.exitZone(after)
	depart := m.earliestDeparture(after)
	left := m.Shift.EndTime - depart
	label := "start"
	if after != start {
		label = fmt.Sprintf("%d", after)
	}
	seen := map[string]bool{from: true}
	add := func(to string) {
		if seen[to] || m.Map.TravelTime(from, to) > left {
			return
		}
		seen[to] = true
		k := moveKey{after, to}
		m.MoveVars[k] = m.MIP.AddBinary(fmt.Sprintf("mv_%s_%s_%s", label, from, to))
		m.MoveOrder = append(m.MoveOrder, k)
	}
	for _, r := range succ {
		add(m.Rides[r].Origin)
	}
	add(m.Shift.EndZone)
	for _, nb := range m.Map.Neighbors(from) {
		add(nb)
	}
}

// objective: ride revenue on each sequence edge entering the ride, minus the
// cost of every executed deadhead.
func (m *Model) objective() mip.Expr {
	var obj mip.Expr
	for i := range m.Rides {
		price := m.Rides[i].Price
		if v, ok := m.SeqVars[seqKey{start, i}]; ok {
			obj = append(obj, mip.Term{Var: v, Coef: price})
		}
		for s := range m.Rides {
			if v, ok := m.SeqVars[seqKey{s, i}]; ok {
				obj = append(obj, mip.Term{Var: v, Coef: price})
			}
		}
	}
	for _, k := range m.MoveOrder {
		cost := m.Map.TravelCost(m.exitZone(k.After), k.To)
		obj = append(obj, mip.Term{Var: m.MoveVars[k], Coef: -cost})
	}
	return obj
}

// bigM dominates every timing slack in the big-M constraint families.
func (m *Model) bigM() float64 {
	maxDur, maxTT := 0.0, 0.0
	for _, r := range m.Rides {
		if r.Duration > maxDur {
			maxDur = r.Duration
		}
		for _, o := range m.Rides {
			if tt := m.Map.TravelTime(r.Destination, o.Origin); tt > maxTT {
				maxTT = tt
			}
		}
		if tt := m.Map.TravelTime(m.Shift.StartZone, r.Origin); tt > maxTT {
			maxTT = tt
		}
		if tt := m.Map.TravelTime(r.Destination, m.Shift.EndZone); tt > maxTT {
			maxTT = tt
		}
	}
	return m.Shift.EndTime + maxDur + maxTT + 1
}
