package store

import (
	"context"
	"sync"

	"riderev/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	reqs     map[string]map[string]model.RideRequest // tenant -> id -> request
	reqOrder map[string][]string                     // tenant -> ids in insertion order
	plans    map[string]map[string]model.Plan        // tenant -> id -> plan
	planIDs  map[string][]string                     // tenant -> plan ids in insertion order
	models   map[string]map[string][]byte            // tenant -> plan id -> LP text
}

func NewMemory() *Memory {
	return &Memory{
		reqs:     map[string]map[string]model.RideRequest{},
		reqOrder: map[string][]string{},
		plans:    map[string]map[string]model.Plan{},
		planIDs:  map[string][]string{},
		models:   map[string]map[string][]byte{},
	}
}

func (m *Memory) CreateRequests(ctx context.Context, tenantID string, reqs []model.RideRequest) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reqs[tenantID] == nil {
		m.reqs[tenantID] = map[string]model.RideRequest{}
	}
	created, skipped := 0, 0
	for _, r := range reqs {
		if _, ok := m.reqs[tenantID][r.ID]; ok {
			skipped++
			continue
		}
		m.reqs[tenantID][r.ID] = r
		m.reqOrder[tenantID] = append(m.reqOrder[tenantID], r.ID)
		created++
	}
	return created, skipped, nil
}

func (m *Memory) ListRequests(ctx context.Context, tenantID, cursor string, limit int) ([]model.RideRequest, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.reqOrder[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.RideRequest{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.reqs[tenantID][ids[i]])
	}
	if start+len(out) < len(ids) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) GetRequests(ctx context.Context, tenantID string, ids []string) ([]model.RideRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RideRequest, 0, len(ids))
	for _, id := range ids {
		r, ok := m.reqs[tenantID][id]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) SavePlan(ctx context.Context, tenantID string, p model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plans[tenantID] == nil {
		m.plans[tenantID] = map[string]model.Plan{}
	}
	if _, ok := m.plans[tenantID][p.ID]; !ok {
		m.planIDs[tenantID] = append(m.planIDs[tenantID], p.ID)
	}
	m.plans[tenantID][p.ID] = p
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[tenantID][planID]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// newest first
	stored := m.planIDs[tenantID]
	ids := make([]string, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		ids = append(ids, stored[i])
	}
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Plan{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.plans[tenantID][ids[i]])
	}
	if start+len(out) < len(ids) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) SavePlanModel(ctx context.Context, tenantID, planID string, lp []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.models[tenantID] == nil {
		m.models[tenantID] = map[string][]byte{}
	}
	m.models[tenantID][planID] = append([]byte{}, lp...)
	return nil
}

func (m *Memory) GetPlanModel(ctx context.Context, tenantID, planID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lp, ok := m.models[tenantID][planID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, lp...), nil
}
