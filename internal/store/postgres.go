package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"riderev/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS and friends).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sqlText, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(sqlText)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateRequests(ctx context.Context, tenantID string, reqs []model.RideRequest) (int, int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created, skipped := 0, 0
	for _, r := range reqs {
		res, err := tx.ExecContext(ctx, `INSERT INTO ride_requests (id, tenant_id, origin, destination, available_at, end_at, price, duration)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (tenant_id, id) DO NOTHING`,
			r.ID, tenantID, r.Origin, r.Destination, r.AvailableAt, r.EndAt, r.Price, r.Duration)
		if err != nil {
			return 0, 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			skipped++
		} else {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return created, skipped, nil
}

func (p *Postgres) ListRequests(ctx context.Context, tenantID, cursor string, limit int) ([]model.RideRequest, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id, origin, destination, available_at, end_at, price, duration
			FROM ride_requests WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id, origin, destination, available_at, end_at, price, duration
			FROM ride_requests WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.RideRequest{}
	for rows.Next() {
		var r model.RideRequest
		if err := rows.Scan(&r.ID, &r.Origin, &r.Destination, &r.AvailableAt, &r.EndAt, &r.Price, &r.Duration); err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) GetRequests(ctx context.Context, tenantID string, ids []string) ([]model.RideRequest, error) {
	out := make([]model.RideRequest, 0, len(ids))
	for _, id := range ids {
		var r model.RideRequest
		err := p.db.QueryRowContext(ctx, `SELECT id, origin, destination, available_at, end_at, price, duration
			FROM ride_requests WHERE tenant_id=$1 AND id=$2`, tenantID, id).
			Scan(&r.ID, &r.Origin, &r.Destination, &r.AvailableAt, &r.EndAt, &r.Price, &r.Duration)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Postgres) SavePlan(ctx context.Context, tenantID string, pl model.Plan) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, status, proven_optimal, objective, solve_ms, nodes, shift, summary, itinerary, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (tenant_id, id) DO UPDATE SET status=EXCLUDED.status, proven_optimal=EXCLUDED.proven_optimal,
			objective=EXCLUDED.objective, solve_ms=EXCLUDED.solve_ms, nodes=EXCLUDED.nodes,
			shift=EXCLUDED.shift, summary=EXCLUDED.summary, itinerary=EXCLUDED.itinerary`,
		pl.ID, tenantID, string(pl.Status), pl.ProvenOptimal, pl.Objective, pl.SolveMs, pl.Nodes,
		toJSON(pl.Shift), toJSON(pl.Summary), toJSON(pl.Itinerary), pl.CreatedAt)
	return err
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	var pl model.Plan
	var status string
	var shift, summary, itinerary []byte
	err := p.db.QueryRowContext(ctx, `SELECT id, status, proven_optimal, objective, solve_ms, nodes, shift, summary, itinerary, created_at
		FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, planID).
		Scan(&pl.ID, &status, &pl.ProvenOptimal, &pl.Objective, &pl.SolveMs, &pl.Nodes, &shift, &summary, &itinerary, &pl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	pl.TenantID = tenantID
	pl.Status = model.SolveStatus(status)
	if err := json.Unmarshal(shift, &pl.Shift); err != nil {
		return model.Plan{}, err
	}
	if err := json.Unmarshal(summary, &pl.Summary); err != nil {
		return model.Plan{}, err
	}
	if err := json.Unmarshal(itinerary, &pl.Itinerary); err != nil {
		return model.Plan{}, err
	}
	return pl, nil
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, cursor string, limit int) ([]model.Plan, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id, status, proven_optimal, objective, solve_ms, nodes, shift, summary, itinerary, created_at
			FROM plans WHERE tenant_id=$1 AND created_at < (SELECT created_at FROM plans WHERE tenant_id=$1 AND id=$2)
			ORDER BY created_at DESC LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id, status, proven_optimal, objective, solve_ms, nodes, shift, summary, itinerary, created_at
			FROM plans WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		var pl model.Plan
		var status string
		var shift, summary, itinerary []byte
		if err := rows.Scan(&pl.ID, &status, &pl.ProvenOptimal, &pl.Objective, &pl.SolveMs, &pl.Nodes, &shift, &summary, &itinerary, &pl.CreatedAt); err != nil {
			return nil, "", err
		}
		pl.TenantID = tenantID
		pl.Status = model.SolveStatus(status)
		if err := json.Unmarshal(shift, &pl.Shift); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(summary, &pl.Summary); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(itinerary, &pl.Itinerary); err != nil {
			return nil, "", err
		}
		out = append(out, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) SavePlanModel(ctx context.Context, tenantID, planID string, lp []byte) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO plan_models (tenant_id, plan_id, lp)
		VALUES ($1,$2,$3) ON CONFLICT (tenant_id, plan_id) DO UPDATE SET lp=EXCLUDED.lp`,
		tenantID, planID, lp)
	return err
}

func (p *Postgres) GetPlanModel(ctx context.Context, tenantID, planID string) ([]byte, error) {
	var lp []byte
	err := p.db.QueryRowContext(ctx, `SELECT lp FROM plan_models WHERE tenant_id=$1 AND plan_id=$2`, tenantID, planID).Scan(&lp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lp, nil
}

func toJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}
