package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"riderev/internal/config"
	"riderev/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServerWithConfig(config.Default())
	if err != nil {
		t.Fatalf("NewServerWithConfig: %v", err)
	}
	return s
}

func testShift(s *Server) model.DriverShift {
	z := s.Zones.Zones()[0].ID
	return model.DriverShift{StartTime: 480, EndTime: 1380, StartZone: z, EndZone: z}
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestRequestsCreateList(t *testing.T) {
	s := newTestServer(t)
	zones := s.Zones.Zones()
	body := fmt.Sprintf(`{"tenantId":"t_test","requests":[{"origin":"%s","destination":"%s","availableAt":500,"endAt":600,"price":12,"duration":9}]}`,
		zones[0].ID, zones[1].ID)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/requests", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.RequestsHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("requests create: got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/requests?limit=5", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.RequestsHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("requests list: got %d", rr.Code)
	}
	var out struct {
		Items []model.RideRequest `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].Price != 12 {
		t.Fatalf("items: %+v", out.Items)
	}
}

func TestRequestsSnapCoordinates(t *testing.T) {
	s := newTestServer(t)
	zones := s.Zones.Zones()
	c := s.Zones.Centroid(zones[0].ID)
	body := fmt.Sprintf(`{"tenantId":"t_test","requests":[{"originLoc":{"lat":%v,"lng":%v},"destination":"%s","availableAt":500,"endAt":600,"price":7,"duration":5}]}`,
		c.Lat, c.Lng, zones[1].ID)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/requests", strings.NewReader(body))
	s.RequestsHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("snap create: got %d: %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.RequestsHandler(rr, req)
	var out struct {
		Items []model.RideRequest `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out.Items) != 1 || out.Items[0].Origin != zones[0].ID {
		t.Fatalf("snapped origin: %+v", out.Items)
	}
}

func TestRequestsRejectsInvalid(t *testing.T) {
	s := newTestServer(t)
	zones := s.Zones.Zones()
	cases := []string{
		`{"requests":[]}`,
		fmt.Sprintf(`{"requests":[{"origin":"%s","destination":"nowhere","availableAt":500,"endAt":600,"price":5,"duration":5}]}`, zones[0].ID),
		fmt.Sprintf(`{"requests":[{"origin":"%s","destination":"%s","availableAt":700,"endAt":600,"price":5,"duration":5}]}`, zones[0].ID, zones[1].ID),
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		s.RequestsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/requests", strings.NewReader(c)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %s: got %d", c, rr.Code)
		}
	}
}

func TestGenerateAndPlan(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/requests/generate", strings.NewReader(`{"tenantId":"t_test","count":8,"seed":42}`))
	s.GenerateRequestsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: got %d: %s", rr.Code, rr.Body.String())
	}

	shift := testShift(s)
	b, _ := json.Marshal(model.PlanRequest{TenantID: "t_test", Shift: shift, TimeBudgetMs: 5000})
	rr = httptest.NewRecorder()
	s.PlanHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/plan", bytes.NewReader(b)))
	if rr.Code != 200 {
		t.Fatalf("plan: got %d: %s", rr.Code, rr.Body.String())
	}
	var p model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if p.ID == "" || (p.Status != model.StatusOptimal && p.Status != model.StatusFeasible) {
		t.Fatalf("plan: %+v", p)
	}
	if p.Objective < 0 {
		t.Fatalf("objective must be non-negative, got %v", p.Objective)
	}

	// fetch by id, itinerary, and LP export
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID, nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlanByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("get plan: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/itinerary", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlanByIDHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("get itinerary: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans/"+p.ID+"/model.lp", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlanByIDHandler(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Maximize") {
		t.Fatalf("get model.lp: got %d: %.60s", rr.Code, rr.Body.String())
	}

	// plan appears in the index
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.PlansIndexHandler(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), p.ID) {
		t.Fatalf("plans index: got %d", rr.Code)
	}

	// and in the solver run log
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/solver/runs", nil)
	req.Header.Set("X-Tenant-Id", "t_test")
	s.SolverRunsHandler(rr, req)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), p.ID) {
		t.Fatalf("solver runs: got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPlanEmptyCatalog(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(model.PlanRequest{TenantID: "t_empty", Shift: testShift(s)})
	rr := httptest.NewRecorder()
	s.PlanHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/plan", bytes.NewReader(b)))
	if rr.Code != 200 {
		t.Fatalf("plan: got %d: %s", rr.Code, rr.Body.String())
	}
	var p model.Plan
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	if p.Status != model.StatusOptimal || p.Objective != 0 || len(p.Itinerary) != 0 {
		t.Fatalf("empty catalog plan: %+v", p)
	}
}

func TestPlanValidation(t *testing.T) {
	s := newTestServer(t)
	z := s.Zones.Zones()[0].ID
	cases := []model.PlanRequest{
		{Shift: model.DriverShift{StartTime: 600, EndTime: 600, StartZone: z, EndZone: z}},
		{Shift: model.DriverShift{StartTime: 480, EndTime: 1380, StartZone: "nowhere", EndZone: z}},
		{Shift: model.DriverShift{StartTime: 480, EndTime: 1380, StartZone: z, EndZone: z}, TimeBudgetMs: -1},
	}
	for i, c := range cases {
		b, _ := json.Marshal(c)
		rr := httptest.NewRecorder()
		s.PlanHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/plan", bytes.NewReader(b)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: got %d", i, rr.Code)
		}
		var pb Problem
		if err := json.Unmarshal(rr.Body.Bytes(), &pb); err != nil {
			t.Fatalf("case %d: decode problem: %v", i, err)
		}
		if pb.Title != titleInvalidInput || pb.Status != http.StatusBadRequest {
			t.Fatalf("case %d: problem %+v", i, pb)
		}
	}
}

func TestPlanUnknownRequestIDs(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(model.PlanRequest{TenantID: "t_test", Shift: testShift(s), RequestIDs: []string{"missing"}})
	rr := httptest.NewRecorder()
	s.PlanHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/plan", bytes.NewReader(b)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestPlanNotFound(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d", rr.Code)
	}
	var pb Problem
	if err := json.Unmarshal(rr.Body.Bytes(), &pb); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if pb.Title != titleNotFound {
		t.Fatalf("title: %q", pb.Title)
	}
}

func TestZones(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.ZonesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/zones", nil))
	if rr.Code != 200 {
		t.Fatalf("zones: got %d", rr.Code)
	}
	var out struct {
		Zones []struct {
			ID string `json:"id"`
		} `json:"zones"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Zones) != 49 {
		t.Fatalf("zones: got %d want 49", len(out.Zones))
	}
}
