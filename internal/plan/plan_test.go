package plan

import (
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"riderev/internal/catalog"
	"riderev/internal/model"
	"riderev/internal/zonemap"
)

func singleZoneMap(t *testing.T) (*zonemap.Map, string) {
	t.Helper()
	m, err := zonemap.New([]zonemap.Zone{{ID: "sr2y7", Lat: 41.9, Lng: 12.5}}, zonemap.DefaultParams())
	if err != nil {
		t.Fatalf("zonemap.New: %v", err)
	}
	return m, "sr2y7"
}

func demoMap(t *testing.T) *zonemap.Map {
	t.Helper()
	m, err := zonemap.Grid(41.9, 12.5, 25, 6, zonemap.DefaultParams())
	if err != nil {
		t.Fatalf("zonemap.Grid: %v", err)
	}
	return m
}

func solve(t *testing.T, m *Model) Result {
	t.Helper()
	m.Encode()
	res, err := BranchBound{}.Solve(context.Background(), m, Options{TimeLimit: 5 * time.Second})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return res
}

func TestSingleRideEarliestStart(t *testing.T) {
	zm, z0 := singleZoneMap(t)
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	rides := []model.RideRequest{{ID: "r1", Origin: z0, Destination: z0, AvailableAt: 500, EndAt: 600, Price: 20, Duration: 30}}

	m, err := Build(rides, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solve(t, m)
	if res.Status != model.StatusOptimal || !res.ProvenOptimal {
		t.Fatalf("status: %v proven=%v", res.Status, res.ProvenOptimal)
	}
	if math.Abs(res.Objective-20) > 1e-6 {
		t.Fatalf("objective: got %v want 20", res.Objective)
	}
	it, err := Reconstruct(m, res)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	// wait 480->500, then the ride
	if it.Summary.AcceptedRides != 1 || math.Abs(it.Summary.NetProfit-20) > 1e-6 {
		t.Fatalf("summary: %+v", it.Summary)
	}
	var ride *model.ItineraryEvent
	for i := range it.Events {
		if it.Events[i].Kind == model.EventRide {
			ride = &it.Events[i]
		}
	}
	if ride == nil || ride.StartMin != 500 || ride.EndMin != 530 {
		t.Fatalf("ride event: %+v", ride)
	}
}

func TestConflictingRidesPickHigherPrice(t *testing.T) {
	zm, z0 := singleZoneMap(t)
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	rides := []model.RideRequest{
		{ID: "cheap", Origin: z0, Destination: z0, AvailableAt: 500, EndAt: 510, Price: 20, Duration: 60},
		{ID: "rich", Origin: z0, Destination: z0, AvailableAt: 500, EndAt: 510, Price: 30, Duration: 60},
	}
	m, err := Build(rides, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// windows close before either ride could finish and hand over
	if len(m.Succ[0]) != 0 || len(m.Succ[1]) != 0 {
		t.Fatalf("expected no eligible pairs, got %v / %v", m.Succ[0], m.Succ[1])
	}
	res := solve(t, m)
	if math.Abs(res.Objective-30) > 1e-6 {
		t.Fatalf("objective: got %v want 30", res.Objective)
	}
	it, err := Reconstruct(m, res)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if it.Summary.AcceptedRides != 1 || it.Summary.OfferedRides != 2 {
		t.Fatalf("summary: %+v", it.Summary)
	}
	for _, ev := range it.Events {
		if ev.Kind == model.EventRide && ev.RequestID != "rich" {
			t.Fatalf("selected %s, want rich", ev.RequestID)
		}
	}
}

func TestRideOutsideShiftNeverSelected(t *testing.T) {
	zm, z0 := singleZoneMap(t)
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	base := []model.RideRequest{{ID: "r1", Origin: z0, Destination: z0, AvailableAt: 500, EndAt: 600, Price: 20, Duration: 30}}
	late := model.RideRequest{ID: "late", Origin: z0, Destination: z0, AvailableAt: 1400, EndAt: 1500, Price: 999, Duration: 10}

	m1, err := Build(base, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r1 := solve(t, m1)

	m2, err := Build(append(append([]model.RideRequest{}, base...), late), shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(m2.Rides) != 1 {
		t.Fatalf("late ride should be pruned, kept %d rides", len(m2.Rides))
	}
	r2 := solve(t, m2)
	if math.Abs(r1.Objective-r2.Objective) > 1e-9 {
		t.Fatalf("objective changed: %v vs %v", r1.Objective, r2.Objective)
	}
}

func TestEmptyCatalog(t *testing.T) {
	zm, z0 := singleZoneMap(t)
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	m, err := Build(nil, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solve(t, m)
	if res.Status != model.StatusOptimal || res.Objective != 0 {
		t.Fatalf("result: %+v", res)
	}
	it, err := Reconstruct(m, res)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(it.Events) != 0 || it.Summary.NetProfit != 0 {
		t.Fatalf("itinerary: %+v", it)
	}
}

func TestInputValidation(t *testing.T) {
	zm, z0 := singleZoneMap(t)
	good := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}

	if _, err := Build(nil, model.DriverShift{StartTime: 600, EndTime: 600, StartZone: z0, EndZone: z0}, zm); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for empty shift, got %v", err)
	}
	bad := []model.RideRequest{{ID: "x", Origin: z0, Destination: z0, AvailableAt: 700, EndAt: 600, Price: 5, Duration: 1}}
	if _, err := Build(bad, good, zm); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for inverted window, got %v", err)
	}
	neg := []model.RideRequest{{ID: "x", Origin: z0, Destination: z0, AvailableAt: 500, EndAt: 600, Price: -5, Duration: 1}}
	if _, err := Build(neg, good, zm); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for negative price, got %v", err)
	}
}

// itineraryInvariants asserts the feasibility, continuity, and shift
// containment properties on a reconstructed itinerary.
func itineraryInvariants(t *testing.T, m *Model, it *Itinerary) {
	t.Helper()
	byID := map[string]model.RideRequest{}
	for _, r := range m.Rides {
		byID[r.ID] = r
	}
	for i, ev := range it.Events {
		if ev.Kind == model.EventRide {
			req := byID[ev.RequestID]
			if ev.StartMin < req.AvailableAt-1e-6 || ev.StartMin > req.EndAt+1e-6 {
				t.Fatalf("ride %s starts at %v outside window [%v,%v]", ev.RequestID, ev.StartMin, req.AvailableAt, req.EndAt)
			}
		}
		if ev.Cost < 0 || ev.Revenue < 0 {
			t.Fatalf("negative revenue/cost: %+v", ev)
		}
		if i == 0 {
			if ev.StartMin < m.Shift.StartTime-1e-6 || ev.Origin != m.Shift.StartZone {
				t.Fatalf("first event %+v does not leave the start zone in-shift", ev)
			}
			continue
		}
		prev := it.Events[i-1]
		if prev.Destination != ev.Origin || math.Abs(prev.EndMin-ev.StartMin) > 1e-6 {
			t.Fatalf("discontinuity between %+v and %+v", prev, ev)
		}
	}
	if n := len(it.Events); n > 0 && it.Events[n-1].EndMin > m.Shift.EndTime+1e-6 {
		t.Fatalf("last event ends after shift: %+v", it.Events[n-1])
	}
}

func TestMultiRidePlanInvariants(t *testing.T) {
	zm := demoMap(t)
	z0 := zm.Zones()[0].ID
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	rides := catalog.NewGenerator(zm, 42).SampleN(8)

	m, err := Build(rides, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solve(t, m)
	if res.Status != model.StatusOptimal {
		t.Fatalf("status: %v", res.Status)
	}
	it, err := Reconstruct(m, res)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	itineraryInvariants(t, m, it)
	if math.Abs(it.Summary.NetProfit-res.Objective) > 1e-6 {
		t.Fatalf("profit %v != objective %v", it.Summary.NetProfit, res.Objective)
	}
}

func TestCrossZoneRideKeepsPlanConsistent(t *testing.T) {
	zm := demoMap(t)
	zones := zm.Zones()
	z0 := zones[0].ID
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	// origin away from the start zone: serving the ride needs a deadhead out
	// and a return deadhead at the end
	rides := []model.RideRequest{{
		ID: "far", Origin: zones[1].ID, Destination: zones[2].ID,
		AvailableAt: 500, EndAt: 700, Price: 25, Duration: 30,
	}}

	m, err := Build(rides, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res := solve(t, m)
	if res.Status != model.StatusOptimal {
		t.Fatalf("status: %v", res.Status)
	}
	if res.Objective <= 0 {
		t.Fatalf("objective: got %v, want the ride taken", res.Objective)
	}
	it, err := Reconstruct(m, res)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	moves := 0
	for _, ev := range it.Events {
		if ev.Kind == model.EventEmptyMove {
			moves++
		}
	}
	if moves < 2 {
		t.Fatalf("expected outbound and return deadheads, got %d empty moves", moves)
	}
	itineraryInvariants(t, m, it)
	if math.Abs(it.Summary.NetProfit-res.Objective) > 1e-6 {
		t.Fatalf("profit %v != objective %v", it.Summary.NetProfit, res.Objective)
	}
}

func TestIdempotentRuns(t *testing.T) {
	zm := demoMap(t)
	z0 := zm.Zones()[0].ID
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	rides := catalog.NewGenerator(zm, 7).SampleN(6)

	run := func() (*Itinerary, []byte) {
		m, err := Build(rides, shift, zm)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		res := solve(t, m)
		it, err := Reconstruct(m, res)
		if err != nil {
			t.Fatalf("reconstruct: %v", err)
		}
		var lp bytes.Buffer
		if err := m.MIP.WriteLP(&lp); err != nil {
			t.Fatalf("write lp: %v", err)
		}
		return it, lp.Bytes()
	}
	it1, lp1 := run()
	it2, lp2 := run()
	if !reflect.DeepEqual(it1, it2) {
		t.Fatalf("itineraries differ between identical runs")
	}
	if !bytes.Equal(lp1, lp2) {
		t.Fatalf("LP exports differ between identical runs")
	}
}

func TestTimeLimitReturnsFeasible(t *testing.T) {
	zm := demoMap(t)
	z0 := zm.Zones()[0].ID
	shift := model.DriverShift{StartTime: 480, EndTime: 1320, StartZone: z0, EndZone: z0}
	rides := catalog.NewGenerator(zm, 3).SampleN(12)

	m, err := Build(rides, shift, zm)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m.Encode()
	res, err := BranchBound{}.Solve(context.Background(), m, Options{NodeLimit: 1})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.ProvenOptimal || res.Status != model.StatusFeasible {
		t.Fatalf("expected truncated feasible result, got %+v", res.Status)
	}
	if _, err := Reconstruct(m, res); err != nil {
		t.Fatalf("reconstruct truncated: %v", err)
	}
}
