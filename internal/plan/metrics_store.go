package plan

import (
	"sort"
	"sync"
)

// RunMetrics summarizes one solve for the admin surface.
type RunMetrics struct {
	PlanID        string  `json:"planId"`
	Status        string  `json:"status"`
	Objective     float64 `json:"objective"`
	Nodes         int     `json:"nodes"`
	ElapsedMs     int64   `json:"elapsedMs"`
	ProvenOptimal bool    `json:"provenOptimal"`
	VarCount      int     `json:"varCount"`
	ConCount      int     `json:"conCount"`
}

type runKey struct {
	Tenant string
	PlanID string
}

var (
	runMu    sync.Mutex
	runStore = map[runKey]RunMetrics{}
)

func RecordRun(tenant string, m RunMetrics) {
	runMu.Lock()
	runStore[runKey{Tenant: tenant, PlanID: m.PlanID}] = m
	runMu.Unlock()
}

func ListRuns(tenant string) []RunMetrics {
	runMu.Lock()
	defer runMu.Unlock()
	out := []RunMetrics{}
	for k, v := range runStore {
		if k.Tenant == tenant {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanID < out[j].PlanID })
	return out
}
