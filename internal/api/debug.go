package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"riderev/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"ADDR":             s.Cfg.Addr,
			"RATE_RPS":         s.Cfg.RateRPS,
			"RATE_BURST":       s.Cfg.RateBurst,
			"ZONES":            len(s.Zones.Zones()),
			"TIME_BUDGET_MS":   s.Cfg.Solver.TimeBudgetMs,
			"NODE_LIMIT":       s.Cfg.Solver.NodeLimit,
			"HAS_DATABASE_URL": os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":    os.Getenv("REDIS_URL") != "",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
