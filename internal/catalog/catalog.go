// Package catalog loads and validates candidate ride requests.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"riderev/internal/model"
	"riderev/internal/zonemap"
)

// Validate rejects malformed requests before they reach the planner.
func Validate(r model.RideRequest, m *zonemap.Map) error {
	if !m.Contains(r.Origin) {
		return fmt.Errorf("request %s: unknown origin zone %q", r.ID, r.Origin)
	}
	if !m.Contains(r.Destination) {
		return fmt.Errorf("request %s: unknown destination zone %q", r.ID, r.Destination)
	}
	if r.AvailableAt > r.EndAt {
		return fmt.Errorf("request %s: availableAt %.1f after endAt %.1f", r.ID, r.AvailableAt, r.EndAt)
	}
	if r.AvailableAt < 0 {
		return fmt.Errorf("request %s: negative availableAt", r.ID)
	}
	if r.Price < 0 {
		return fmt.Errorf("request %s: negative price", r.ID)
	}
	if r.Duration < 0 {
		return fmt.Errorf("request %s: negative duration", r.ID)
	}
	return nil
}

// Load reads the tabular request source. Columns:
// origin,destination,available_at,end_at,price,duration. A header row is
// skipped when the first field is not a zone in the map.
func Load(r io.Reader, m *zonemap.Map) ([]model.RideRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: read csv: %w", err)
	}
	var out []model.RideRequest
	for i, rec := range rows {
		if i == 0 && !m.Contains(rec[0]) {
			continue // header
		}
		req := model.RideRequest{ID: fmt.Sprintf("row-%d", i+1), Origin: rec[0], Destination: rec[1]}
		nums := [4]*float64{&req.AvailableAt, &req.EndAt, &req.Price, &req.Duration}
		for k, dst := range nums {
			v, err := strconv.ParseFloat(rec[k+2], 64)
			if err != nil {
				return nil, fmt.Errorf("catalog: row %d col %d: %w", i+1, k+3, err)
			}
			*dst = v
		}
		if err := Validate(req, m); err != nil {
			return nil, fmt.Errorf("catalog: row %d: %w", i+1, err)
		}
		out = append(out, req)
	}
	return out, nil
}
