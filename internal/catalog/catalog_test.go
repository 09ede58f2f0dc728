package catalog

import (
	"fmt"
	"strings"
	"testing"

	"riderev/internal/zonemap"
)

func testMap(t *testing.T) *zonemap.Map {
	t.Helper()
	m, err := zonemap.Grid(41.9, 12.5, 9, 6, zonemap.DefaultParams())
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	return m
}

func TestLoadValidCSV(t *testing.T) {
	m := testMap(t)
	a := m.Zones()[0].ID
	b := m.Zones()[1].ID
	src := "origin,destination,available_at,end_at,price,duration\n" +
		fmt.Sprintf("%s,%s,500,600,12.5,8\n", a, b) +
		fmt.Sprintf("%s,%s,520,700,9,6.5\n", b, a)
	reqs, err := Load(strings.NewReader(src), m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("requests: %d", len(reqs))
	}
	if reqs[0].Origin != a || reqs[0].Price != 12.5 || reqs[1].Duration != 6.5 {
		t.Fatalf("parsed: %+v", reqs)
	}
}

func TestLoadRejectsBadRows(t *testing.T) {
	m := testMap(t)
	a := m.Zones()[0].ID
	b := m.Zones()[1].ID
	cases := []string{
		fmt.Sprintf("%s,%s,700,600,10,5\n", a, b),   // window inverted
		fmt.Sprintf("%s,%s,500,600,-1,5\n", a, b),   // negative price
		fmt.Sprintf("%s,%s,500,600,10,-5\n", a, b),  // negative duration
		fmt.Sprintf("%s,nowhere,500,600,10,5\n", a), // unknown zone
		fmt.Sprintf("%s,%s,xx,600,10,5\n", a, b),    // unparsable minute
	}
	for _, c := range cases {
		if _, err := Load(strings.NewReader(c), m); err == nil {
			t.Fatalf("row %q: want error", strings.TrimSpace(c))
		}
	}
}

func TestGeneratorSamples(t *testing.T) {
	m := testMap(t)
	g := NewGenerator(m, 99)
	reqs := g.SampleN(50)
	for _, r := range reqs {
		if err := Validate(r, m); err != nil {
			t.Fatalf("generated request invalid: %v", err)
		}
		if r.Origin == r.Destination {
			t.Fatalf("origin == destination: %+v", r)
		}
		if r.AvailableAt < g.DayStart || r.EndAt > g.DayEnd {
			t.Fatalf("window outside day: %+v", r)
		}
		if r.Price < g.InitialFare {
			t.Fatalf("price below initial fare: %+v", r)
		}
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	m := testMap(t)
	a := NewGenerator(m, 5).SampleN(10)
	b := NewGenerator(m, 5).SampleN(10)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
