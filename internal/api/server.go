package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"riderev/internal/config"
	"riderev/internal/metrics"
	"riderev/internal/plan"
	"riderev/internal/store"
	"riderev/internal/zonemap"
)

type Server struct {
	Cfg    config.Config
	Store  store.Store
	Zones  *zonemap.Map
	Solver plan.Solver
	Broker EventBroker

	limiter *rate.Limiter
}

// NewServer creates a Server from the environment. If DATABASE_URL is
// unset, uses the in-memory store; if ZONES_CSV is unset, builds the
// demo geohash grid.
func NewServer() (*Server, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return NewServerWithConfig(cfg)
}

func NewServerWithConfig(cfg config.Config) (*Server, error) {
	params := zonemap.Params{
		DetourFactor: cfg.Map.DetourFactor,
		SpeedKmh:     cfg.Map.SpeedKmh,
		CostPerKm:    cfg.Map.CostPerKm,
	}
	var zm *zonemap.Map
	if cfg.Map.ZonesCSV != "" {
		f, err := os.Open(cfg.Map.ZonesCSV)
		if err != nil {
			return nil, err
		}
		zm, err = zonemap.Load(f, params)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		zm, err = zonemap.Grid(cfg.Map.GridLat, cfg.Map.GridLng, cfg.Map.GridCells, uint(cfg.Map.GridPrecision), params)
		if err != nil {
			return nil, err
		}
	}

	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}

	// Broker selection
	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	metrics.RegisterDefault()
	return &Server{
		Cfg:     cfg,
		Store:   s,
		Zones:   zm,
		Solver:  plan.BranchBound{},
		Broker:  broker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	// For now, get tenant from header; in production decode from JWT.
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}
