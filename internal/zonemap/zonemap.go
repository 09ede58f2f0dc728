// Package zonemap provides the discretized service-area graph: geohash zone
// cells with centroids, pairwise travel distance/time/cost, and neighbor sets.
package zonemap

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dhconnelly/rtreego"
	"github.com/mmcloughlin/geohash"

	"riderev/internal/model"
)

// Zone is one geohash cell of the service area.
type Zone struct {
	ID     string  `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// Params scale air distance into road distance, travel time, and cost.
type Params struct {
	DetourFactor float64 // air-to-road distance ratio
	SpeedKmh     float64 // average driving speed
	CostPerKm    float64 // empty-travel cost per road km
}

func DefaultParams() Params {
	return Params{DetourFactor: 1.3, SpeedKmh: 60, CostPerKm: 0.7}
}

// Map is an immutable lookup service over the zone set. All pairwise values
// are precomputed; lookups never block.
type Map struct {
	zones     []Zone
	index     map[string]int
	dist      [][]float64 // road km
	neighbors [][]int     // 2-ring neighbor indices per zone
	tree      *rtreego.Rtree
	params    Params
}

// centroidTol is the half-width of the degenerate rect indexing a centroid.
const centroidTol = 1e-9

type zoneEntry struct {
	idx  int
	rect rtreego.Rect
}

func (z *zoneEntry) Bounds() rtreego.Rect { return z.rect }

// New builds a Map from a zone list. Centroids missing from the input are
// derived from the geohash cell itself.
func New(zones []Zone, p Params) (*Map, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("zonemap: no zones")
	}
	if p.DetourFactor <= 0 || p.SpeedKmh <= 0 || p.CostPerKm < 0 {
		return nil, fmt.Errorf("zonemap: invalid params %+v", p)
	}
	m := &Map{zones: append([]Zone(nil), zones...), index: make(map[string]int, len(zones)), params: p}
	for i := range m.zones {
		z := &m.zones[i]
		if z.ID == "" {
			return nil, fmt.Errorf("zonemap: zone %d has empty id", i)
		}
		if _, dup := m.index[z.ID]; dup {
			return nil, fmt.Errorf("zonemap: duplicate zone %s", z.ID)
		}
		if z.Lat == 0 && z.Lng == 0 {
			z.Lat, z.Lng = geohash.DecodeCenter(z.ID)
		}
		if z.Weight <= 0 {
			z.Weight = 1
		}
		m.index[z.ID] = i
	}
	n := len(m.zones)
	m.dist = make([][]float64, n)
	for i := 0; i < n; i++ {
		m.dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			air := haversineKm(m.zones[i].Lat, m.zones[i].Lng, m.zones[j].Lat, m.zones[j].Lng)
			m.dist[i][j] = air * p.DetourFactor
		}
	}
	m.neighbors = make([][]int, n)
	for i := 0; i < n; i++ {
		m.neighbors[i] = m.ring2(i)
	}
	m.tree = rtreego.NewTree(2, 25, 50)
	for i, z := range m.zones {
		m.tree.Insert(&zoneEntry{idx: i, rect: rtreego.Point{z.Lat, z.Lng}.ToRect(centroidTol)})
	}
	return m, nil
}

// ring2 collects the geohash 2-ring around zone i, restricted to cells that
// are part of the map.
func (m *Map) ring2(i int) []int {
	seen := map[string]bool{m.zones[i].ID: true}
	frontier := []string{m.zones[i].ID}
	var out []int
	for depth := 0; depth < 2; depth++ {
		var next []string
		for _, id := range frontier {
			for _, nb := range geohash.Neighbors(id) {
				if seen[nb] {
					continue
				}
				seen[nb] = true
				next = append(next, nb)
				if j, ok := m.index[nb]; ok {
					out = append(out, j)
				}
			}
		}
		frontier = next
	}
	return out
}

// Load reads a zone CSV with columns: zone,lat,lng,weight. A header row is
// skipped; lat/lng may be blank for pure-geohash rows.
func Load(r io.Reader, p Params) (*Map, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("zonemap: read csv: %w", err)
	}
	var zones []Zone
	for i, rec := range rows {
		if len(rec) == 0 {
			continue
		}
		if i == 0 && rec[0] == "zone" {
			continue
		}
		z := Zone{ID: rec[0]}
		if len(rec) > 1 && rec[1] != "" {
			if z.Lat, err = strconv.ParseFloat(rec[1], 64); err != nil {
				return nil, fmt.Errorf("zonemap: row %d lat: %w", i+1, err)
			}
		}
		if len(rec) > 2 && rec[2] != "" {
			if z.Lng, err = strconv.ParseFloat(rec[2], 64); err != nil {
				return nil, fmt.Errorf("zonemap: row %d lng: %w", i+1, err)
			}
		}
		if len(rec) > 3 && rec[3] != "" {
			if z.Weight, err = strconv.ParseFloat(rec[3], 64); err != nil {
				return nil, fmt.Errorf("zonemap: row %d weight: %w", i+1, err)
			}
		}
		zones = append(zones, z)
	}
	return New(zones, p)
}

// Grid synthesizes a demo service area: a roughly square patch of geohash
// cells grown outward from the seed coordinate.
func Grid(lat, lng float64, count int, precision uint, p Params) (*Map, error) {
	if count <= 0 {
		count = 49
	}
	seed := geohash.EncodeWithPrecision(lat, lng, precision)
	seen := map[string]bool{seed: true}
	order := []string{seed}
	for i := 0; i < len(order) && len(order) < count; i++ {
		for _, nb := range geohash.Neighbors(order[i]) {
			if seen[nb] {
				continue
			}
			seen[nb] = true
			order = append(order, nb)
			if len(order) == count {
				break
			}
		}
	}
	zones := make([]Zone, len(order))
	for i, id := range order {
		clat, clng := geohash.DecodeCenter(id)
		// heavier demand toward the center cell
		zones[i] = Zone{ID: id, Lat: clat, Lng: clng, Weight: float64(len(order) - i)}
	}
	return New(zones, p)
}

func (m *Map) Contains(id string) bool { _, ok := m.index[id]; return ok }

func (m *Map) Zones() []Zone { return m.zones }

// Distance returns road km between two zones, +Inf if either is unknown.
func (m *Map) Distance(a, b string) float64 {
	i, ok1 := m.index[a]
	j, ok2 := m.index[b]
	if !ok1 || !ok2 {
		return math.Inf(1)
	}
	return m.dist[i][j]
}

// TravelTime returns driving minutes between two zones.
func (m *Map) TravelTime(a, b string) float64 {
	d := m.Distance(a, b)
	if math.IsInf(d, 1) {
		return d
	}
	return d / m.params.SpeedKmh * 60
}

// TravelCost returns the empty-travel cost between two zones.
func (m *Map) TravelCost(a, b string) float64 {
	d := m.Distance(a, b)
	if math.IsInf(d, 1) {
		return d
	}
	return d * m.params.CostPerKm
}

// Centroid returns the zone's reference point; zero value for unknown zones.
func (m *Map) Centroid(id string) model.GeoPoint {
	i, ok := m.index[id]
	if !ok {
		return model.GeoPoint{}
	}
	return model.GeoPoint{Lat: m.zones[i].Lat, Lng: m.zones[i].Lng}
}

// Neighbors returns the ids of zones in the 2-ring around id.
func (m *Map) Neighbors(id string) []string {
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	out := make([]string, len(m.neighbors[i]))
	for k, j := range m.neighbors[i] {
		out[k] = m.zones[j].ID
	}
	return out
}

// Nearest snaps a coordinate to the zone whose centroid is closest in the
// rtree index.
func (m *Map) Nearest(lat, lng float64) string {
	sp := m.tree.NearestNeighbor(rtreego.Point{lat, lng})
	if sp == nil {
		return ""
	}
	return m.zones[sp.(*zoneEntry).idx].ID
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
