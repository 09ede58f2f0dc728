package plan

import (
	"fmt"

	"riderev/internal/model"
)

const checkTol = 1e-6

// Itinerary is the reconstructed, timestamped event sequence with its
// revenue/cost summary. Immutable once built.
type Itinerary struct {
	Events  []model.ItineraryEvent
	Summary model.PlanSummary
}

// Reconstruct walks the solved assignment from the start zone, following true
// sequence and deadhead indicators, and emits one event per ride, deadhead,
// and positive wait. It re-checks the assignment against the encoded
// constraints first and fails on any inconsistency instead of dropping data:
// a violation here means an encoding or solver defect, not user error.
func Reconstruct(m *Model, res Result) (*Itinerary, error) {
	if res.Status == model.StatusInfeasible {
		return nil, ErrInfeasible
	}
	if res.Status == model.StatusNoSolution {
		return nil, ErrNoSolution
	}
	if vs := m.MIP.Check(res.Assignment, checkTol); len(vs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInconsistent, vs[0])
	}

	assign := res.Assignment
	it := &Itinerary{Events: []model.ItineraryEvent{}}
	visited := make([]bool, len(m.Rides))
	loc := m.Shift.StartZone
	t := m.Shift.StartTime

	emit := func(kind model.EventKind, reqID, from, to string, startAt, endAt, revenue, cost float64) {
		it.Events = append(it.Events, model.ItineraryEvent{
			Seq:         len(it.Events),
			Kind:        kind,
			RequestID:   reqID,
			Origin:      from,
			Destination: to,
			OriginLoc:   m.Map.Centroid(from),
			DestLoc:     m.Map.Centroid(to),
			StartMin:    startAt,
			EndMin:      endAt,
			DurationMin: endAt - startAt,
			Revenue:     revenue,
			Cost:        cost,
		})
	}

	last := start
	for {
		next := -1
		succ := m.StartSucc
		if last != start {
			succ = m.Succ[last]
		}
		for _, r := range succ {
			if assign[m.SeqVars[seqKey{last, r}]] > 0.5 {
				next = r
				break
			}
		}
		if next == -1 {
			// Path ends; a final deadhead to the end zone may remain.
			if mv, ok := m.MoveVars[moveKey{last, m.Shift.EndZone}]; ok && assign[mv] > 0.5 {
				tt := m.Map.TravelTime(loc, m.Shift.EndZone)
				emit(model.EventEmptyMove, "", loc, m.Shift.EndZone, t, t+tt, 0, m.Map.TravelCost(loc, m.Shift.EndZone))
				t += tt
				loc = m.Shift.EndZone
			}
			break
		}
		if visited[next] {
			return nil, fmt.Errorf("%w: ride %s visited twice", ErrInconsistent, m.Rides[next].ID)
		}
		req := m.Rides[next]
		if req.Origin != loc {
			tt := m.Map.TravelTime(loc, req.Origin)
			emit(model.EventEmptyMove, "", loc, req.Origin, t, t+tt, 0, m.Map.TravelCost(loc, req.Origin))
			t += tt
			loc = req.Origin
		}
		startAt := assign[m.StartVars[next]]
		if startAt < t-checkTol {
			return nil, fmt.Errorf("%w: ride %s starts at %.3f before arrival %.3f", ErrInconsistent, req.ID, startAt, t)
		}
		if startAt-t > checkTol {
			emit(model.EventWait, "", loc, loc, t, startAt, 0, 0)
		}
		emit(model.EventRide, req.ID, req.Origin, req.Destination, startAt, startAt+req.Duration, req.Price, 0)
		visited[next] = true
		t = startAt + req.Duration
		loc = req.Destination
		last = next
	}

	// Every selected ride must sit on the single walked path; a leftover
	// selection means the assignment decoded into multiple components.
	for r := range m.Rides {
		selected := false
		if assign[m.SeqVars[seqKey{start, r}]] > 0.5 {
			selected = true
		}
		for s := range m.Rides {
			if v, ok := m.SeqVars[seqKey{s, r}]; ok && assign[v] > 0.5 {
				selected = true
			}
		}
		if selected && !visited[r] {
			return nil, fmt.Errorf("%w: ride %s selected but unreachable from start", ErrInconsistent, m.Rides[r].ID)
		}
	}

	for _, ev := range it.Events {
		it.Summary.TotalRevenue += ev.Revenue
		it.Summary.EmptyMoveCost += ev.Cost
		if ev.Kind == model.EventRide {
			it.Summary.AcceptedRides++
		}
	}
	it.Summary.NetProfit = it.Summary.TotalRevenue - it.Summary.EmptyMoveCost
	it.Summary.OfferedRides = m.Offered
	return it, nil
}
