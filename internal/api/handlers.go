package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"riderev/internal/catalog"
	"riderev/internal/metrics"
	"riderev/internal/model"
	"riderev/internal/plan"
	"riderev/internal/store"
)

// RequestsHandler handles POST/GET /v1/requests
func (s *Server) RequestsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string                `json:"tenantId"`
			Requests []model.RideRequestIn `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, titleInvalidJSON, err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			_, req.TenantID = s.withTenant(r)
		}
		if len(req.Requests) == 0 {
			writeProblem(w, http.StatusBadRequest, titleInvalidInput, "requests must be non-empty", r.URL.Path)
			return
		}
		rides := make([]model.RideRequest, 0, len(req.Requests))
		ids := make([]string, 0, len(req.Requests))
		for i, in := range req.Requests {
			ride, err := resolveRequest(in, s.Zones)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, titleInvalidInput, fmt.Sprintf("request %d: %v", i, err), r.URL.Path)
				return
			}
			ride.ID = uuid.New().String()
			if err := catalog.Validate(ride, s.Zones); err != nil {
				writeProblem(w, http.StatusBadRequest, titleInvalidInput, fmt.Sprintf("request %d: %v", i, err), r.URL.Path)
				return
			}
			rides = append(rides, ride)
			ids = append(ids, ride.ID)
		}
		created, skipped, err := s.Store.CreateRequests(r.Context(), req.TenantID, rides)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create requests failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"created": created, "skipped": skipped, "ids": ids})
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListRequests(r.Context(), tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List requests failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// GenerateRequestsHandler handles POST /v1/requests/generate, sampling a
// synthetic demand batch from the zone map's weights.
func (s *Server) GenerateRequestsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		TenantID string `json:"tenantId"`
		Count    int    `json:"count"`
		Seed     int64  `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, titleInvalidJSON, err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		_, req.TenantID = s.withTenant(r)
	}
	if req.Count <= 0 {
		req.Count = 20
	}
	if req.Count > 500 {
		writeProblem(w, http.StatusBadRequest, titleInvalidInput, "count must be <= 500", r.URL.Path)
		return
	}
	gen := catalog.NewGenerator(s.Zones, req.Seed)
	rides := gen.SampleN(req.Count)
	for i := range rides {
		rides[i].ID = uuid.New().String()
	}
	created, _, err := s.Store.CreateRequests(r.Context(), req.TenantID, rides)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create requests failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": created, "items": rides})
}

// PlanHandler handles POST /v1/plan: select and sequence rides for one
// driver shift and persist the resulting plan.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, titleInvalidJSON, err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		_, req.TenantID = s.withTenant(r)
	}
	if err := validatePlanRequest(&req, s.Zones); err != nil {
		writeProblem(w, http.StatusBadRequest, titleInvalidInput, err.Error(), r.URL.Path)
		return
	}
	rides, err := s.loadRides(r, req)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}

	m, err := plan.Build(rides, req.Shift, s.Zones)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	m.Encode()
	var lp bytes.Buffer
	if err := m.MIP.WriteLP(&lp); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export model failed", err.Error(), r.URL.Path)
		return
	}

	budget := req.TimeBudgetMs
	if budget <= 0 {
		budget = s.Cfg.Solver.TimeBudgetMs
	}
	nodeLimit := req.NodeLimit
	if nodeLimit <= 0 {
		nodeLimit = s.Cfg.Solver.NodeLimit
	}
	res, err := s.Solver.Solve(r.Context(), m, plan.Options{
		TimeLimit: time.Duration(budget) * time.Millisecond,
		NodeLimit: nodeLimit,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
		return
	}

	planID := uuid.New().String()
	out := model.Plan{
		ID:            planID,
		TenantID:      req.TenantID,
		Shift:         req.Shift,
		Status:        res.Status,
		ProvenOptimal: res.ProvenOptimal,
		Objective:     res.Objective,
		SolveMs:       res.Elapsed.Milliseconds(),
		Nodes:         res.Nodes,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	it, rerr := plan.Reconstruct(m, res)
	switch {
	case rerr == nil:
		out.Itinerary = it.Events
		out.Summary = it.Summary
	case errors.Is(rerr, plan.ErrInfeasible), errors.Is(rerr, plan.ErrNoSolution):
		// plan is persisted with its terminal status and no itinerary
	default:
		writeError(w, rerr, r.URL.Path)
		return
	}

	if err := s.Store.SavePlan(r.Context(), req.TenantID, out); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	if err := s.Store.SavePlanModel(r.Context(), req.TenantID, planID, lp.Bytes()); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan model failed", err.Error(), r.URL.Path)
		return
	}

	metrics.Plans.WithLabelValues(string(out.Status)).Inc()
	metrics.SolveDuration.Observe(float64(out.SolveMs))
	metrics.SolveNodes.Observe(float64(out.Nodes))
	metrics.AcceptedRides.Observe(float64(out.Summary.AcceptedRides))
	plan.RecordRun(req.TenantID, plan.RunMetrics{
		PlanID:        planID,
		Status:        string(out.Status),
		Objective:     out.Objective,
		Nodes:         out.Nodes,
		ElapsedMs:     out.SolveMs,
		ProvenOptimal: out.ProvenOptimal,
		VarCount:      m.MIP.NumVars(),
		ConCount:      m.MIP.NumConstraints(),
	})
	s.Broker.Publish(planID, SSEEvent{Type: "plan.completed", Data: map[string]any{
		"planId":    planID,
		"status":    string(out.Status),
		"objective": out.Objective,
		"accepted":  out.Summary.AcceptedRides,
	}})
	writeJSON(w, http.StatusOK, out)
}

// loadRides fetches the requested catalog subset, or every stored
// request for the tenant when no ids were given.
func (s *Server) loadRides(r *http.Request, req model.PlanRequest) ([]model.RideRequest, error) {
	if len(req.RequestIDs) > 0 {
		return s.Store.GetRequests(r.Context(), req.TenantID, req.RequestIDs)
	}
	all := []model.RideRequest{}
	cursor := ""
	for {
		items, next, err := s.Store.ListRequests(r.Context(), req.TenantID, cursor, 500)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// PlansIndexHandler handles GET /v1/plans
func (s *Server) PlansIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListPlans(r.Context(), tenant, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles /v1/plans/{planId} and its subresources:
// /itinerary, /model.lp, and /events/stream (SSE).
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == "" || rest == r.URL.Path {
		writeProblem(w, http.StatusNotFound, titleNotFound, "", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	_, tenant := s.withTenant(r)

	if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
		s.streamPlanEvents(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case len(parts) == 1:
		p, err := s.Store.GetPlan(r.Context(), tenant, id)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case parts[1] == "itinerary":
		p, err := s.Store.GetPlan(r.Context(), tenant, id)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": p.Itinerary, "summary": p.Summary})
	case parts[1] == "model.lp":
		lp, err := s.Store.GetPlanModel(r.Context(), tenant, id)
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(lp)
	default:
		writeProblem(w, http.StatusNotFound, titleNotFound, "", r.URL.Path)
	}
}

func (s *Server) streamPlanEvents(w http.ResponseWriter, r *http.Request, planID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(planID)
	defer s.Broker.Unsubscribe(planID, ch)
	// initial heartbeat, then the current state for late subscribers
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", planID, time.Now().Format(time.RFC3339))
	_, tenant := s.withTenant(r)
	if p, err := s.Store.GetPlan(r.Context(), tenant, planID); err == nil {
		b, _ := json.Marshal(p)
		fmt.Fprintf(w, "event: plan.snapshot\n")
		fmt.Fprintf(w, "data: %s\n\n", string(b))
	}
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", planID, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// ZonesHandler handles GET /v1/zones
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": s.Zones.Zones()})
}

// SolverRunsHandler handles GET /v1/admin/solver/runs
func (s *Server) SolverRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	writeJSON(w, http.StatusOK, map[string]any{"items": plan.ListRuns(tenant)})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if pg, ok := s.Store.(*store.Postgres); ok {
		if err := pg.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
