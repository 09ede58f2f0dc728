package catalog

import (
	"fmt"
	"math/rand"

	"riderev/internal/model"
	"riderev/internal/zonemap"
)

// Generator samples synthetic demand over the zone map: weighted
// origin/destination cells, a window inside the service day, metered pricing
// over road distance, and a duration from a sampled driving speed.
type Generator struct {
	m   *zonemap.Map
	rng *rand.Rand
	cum []float64 // cumulative zone weights

	DayStart    float64 // minutes
	DayEnd      float64
	InitialFare float64
	PricePerKm  [2]float64
	SpeedKmh    [2]float64
}

func NewGenerator(m *zonemap.Map, seed int64) *Generator {
	g := &Generator{
		m:           m,
		rng:         rand.New(rand.NewSource(seed)),
		DayStart:    8 * 60,
		DayEnd:      23 * 60,
		InitialFare: 3,
		PricePerKm:  [2]float64{1.1, 1.6},
		SpeedKmh:    [2]float64{15, 25},
	}
	total := 0.0
	for _, z := range m.Zones() {
		total += z.Weight
		g.cum = append(g.cum, total)
	}
	return g
}

func (g *Generator) pickZone() string {
	zones := g.m.Zones()
	r := g.rng.Float64() * g.cum[len(g.cum)-1]
	for i, c := range g.cum {
		if r <= c {
			return zones[i].ID
		}
	}
	return zones[len(zones)-1].ID
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Sample produces one request. Origin and destination always differ.
func (g *Generator) Sample() model.RideRequest {
	origin := g.pickZone()
	dest := g.pickZone()
	for dest == origin && len(g.cum) > 1 {
		dest = g.pickZone()
	}
	availableAt := g.uniform(g.DayStart, g.DayEnd-1)
	endAt := g.uniform(availableAt+1, g.DayEnd)
	dist := g.m.Distance(origin, dest)
	duration := dist / g.uniform(g.SpeedKmh[0], g.SpeedKmh[1]) * 60
	price := g.InitialFare + dist*g.uniform(g.PricePerKm[0], g.PricePerKm[1])
	return model.RideRequest{
		Origin:      origin,
		Destination: dest,
		AvailableAt: availableAt,
		EndAt:       endAt,
		Price:       price,
		Duration:    duration,
	}
}

// SampleN produces n requests with sequential ids.
func (g *Generator) SampleN(n int) []model.RideRequest {
	out := make([]model.RideRequest, n)
	for i := range out {
		out[i] = g.Sample()
		out[i].ID = fmt.Sprintf("gen-%d", i+1)
	}
	return out
}
