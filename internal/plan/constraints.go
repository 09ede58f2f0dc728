package plan

import (
	"fmt"

	"riderev/internal/mip"
)

// Encode adds every constraint family to the underlying linear model. The
// encoding is solver-agnostic: big-M inequalities only, no solver extensions.
//
// Families:
//
//	select        each ride is entered at most once
//	flow          a finished ride hands over to at most one next ride; ending
//	              the shift is the slack. Deadheads are not outflow, they are
//	              tied to their sequence edge by deadhead_link
//	start         at most one ride is taken first
//	deadhead_link a sequence edge that changes zones forces its deadhead, and
//	              a deadhead needs a followed ride (or the end zone) behind it
//	end_return    a ride that ends the path away from the end zone forces the
//	              return deadhead
//	time_window   selected rides start inside [availableAt, endAt]
//	ordering      start(r) >= start(s) + duration(s) + travel when s precedes
//	              r; waiting is slack in the inequality
//	first         the first ride waits for travel from the start zone
//	end_shift     a selected ride leaves time to reach the end zone in-shift
func (m *Model) Encode() {
	M := m.BigM

	// taken(r) as an expression, reused across families.
	taken := func(r int) mip.Expr {
		var e mip.Expr
		if v, ok := m.SeqVars[seqKey{start, r}]; ok {
			e = append(e, mip.Term{Var: v, Coef: 1})
		}
		for s := range m.Rides {
			if v, ok := m.SeqVars[seqKey{s, r}]; ok {
				e = append(e, mip.Term{Var: v, Coef: 1})
			}
		}
		return e
	}

	for r := range m.Rides {
		m.MIP.AddConstraint("select", fmt.Sprintf("sel_%d", r), taken(r), mip.LE, 1)
	}

	// Outflow counts sequence edges only: a deadhead rides along with its
	// sequence edge (deadhead_link), so counting it here would double the
	// edge and cut off every plan that changes zones.
	for s := range m.Rides {
		var e mip.Expr
		for _, r := range m.Succ[s] {
			e = append(e, mip.Term{Var: m.SeqVars[seqKey{s, r}], Coef: 1})
		}
		for _, t := range taken(s) {
			e = append(e, mip.Term{Var: t.Var, Coef: -1})
		}
		if len(e) > 0 {
			m.MIP.AddConstraint("flow", fmt.Sprintf("flow_%d", s), e, mip.LE, 0)
		}
	}

	var first mip.Expr
	for _, r := range m.StartSucc {
		first = append(first, mip.Term{Var: m.SeqVars[seqKey{start, r}], Coef: 1})
	}
	if len(first) > 0 {
		m.MIP.AddConstraint("start", "start_once", first, mip.LE, 1)
	}

	// A zone-changing sequence edge implies its deadhead leg.
	link := func(after int, succ []int, label string) {
		from := m.exitZone(after)
		for _, r := range succ {
			to := m.Rides[r].Origin
			if to == from {
				continue
			}
			mv, ok := m.MoveVars[moveKey{after, to}]
			if !ok {
				continue // pair pruned by remaining-time filter
			}
			e := mip.Expr{{Var: m.SeqVars[seqKey{after, r}], Coef: 1}, {Var: mv, Coef: -1}}
			m.MIP.AddConstraint("deadhead_link", fmt.Sprintf("link_%s_%d", label, r), e, mip.LE, 0)
		}
	}
	link(start, m.StartSucc, "start")
	for s := range m.Rides {
		link(s, m.Succ[s], fmt.Sprintf("%d", s))
	}

	// A deadhead not aimed at the end zone must be followed by a ride
	// starting where it lands.
	for _, k := range m.MoveOrder {
		if k.To == m.Shift.EndZone {
			continue
		}
		e := mip.Expr{{Var: m.MoveVars[k], Coef: 1}}
		succ := m.StartSucc
		if k.After != start {
			succ = m.Succ[k.After]
		}
		for _, r := range succ {
			if m.Rides[r].Origin == k.To {
				e = append(e, mip.Term{Var: m.SeqVars[seqKey{k.After, r}], Coef: -1})
			}
		}
		m.MIP.AddConstraint("deadhead_link", fmt.Sprintf("cap_%d_%s", k.After, k.To), e, mip.LE, 0)
	}

	// A taken ride with no outgoing sequence edge ends the path; if its
	// destination is not the end zone, the return deadhead is forced.
	for s := range m.Rides {
		if m.exitZone(s) == m.Shift.EndZone {
			continue
		}
		ret, ok := m.MoveVars[moveKey{s, m.Shift.EndZone}]
		if !ok {
			continue // reachability pruning guarantees this in practice
		}
		e := taken(s)
		for _, r := range m.Succ[s] {
			e = append(e, mip.Term{Var: m.SeqVars[seqKey{s, r}], Coef: -1})
		}
		e = append(e, mip.Term{Var: ret, Coef: -1})
		m.MIP.AddConstraint("end_return", fmt.Sprintf("ret_%d", s), e, mip.LE, 0)
	}

	for r, req := range m.Rides {
		tk := taken(r)

		lo := mip.Expr{{Var: m.StartVars[r], Coef: 1}}
		for _, t := range tk {
			lo = append(lo, mip.Term{Var: t.Var, Coef: -M})
		}
		m.MIP.AddConstraint("time_window", fmt.Sprintf("tw_lo_%d", r), lo, mip.GE, req.AvailableAt-M)

		hi := mip.Expr{{Var: m.StartVars[r], Coef: 1}}
		for _, t := range tk {
			hi = append(hi, mip.Term{Var: t.Var, Coef: M})
		}
		m.MIP.AddConstraint("time_window", fmt.Sprintf("tw_hi_%d", r), hi, mip.LE, req.EndAt+M)

		back := m.Map.TravelTime(req.Destination, m.Shift.EndZone)
		es := mip.Expr{{Var: m.StartVars[r], Coef: 1}}
		for _, t := range tk {
			es = append(es, mip.Term{Var: t.Var, Coef: M})
		}
		m.MIP.AddConstraint("end_shift", fmt.Sprintf("es_%d", r),
			es, mip.LE, m.Shift.EndTime+M-req.Duration-back)
	}

	for s := range m.Rides {
		for _, r := range m.Succ[s] {
			tt := m.Map.TravelTime(m.Rides[s].Destination, m.Rides[r].Origin)
			e := mip.Expr{
				{Var: m.StartVars[r], Coef: 1},
				{Var: m.StartVars[s], Coef: -1},
				{Var: m.SeqVars[seqKey{s, r}], Coef: -M},
			}
			m.MIP.AddConstraint("ordering", fmt.Sprintf("ord_%d_%d", s, r),
				e, mip.GE, m.Rides[s].Duration+tt-M)
		}
	}

	for _, r := range m.StartSucc {
		tt := m.Map.TravelTime(m.Shift.StartZone, m.Rides[r].Origin)
		e := mip.Expr{
			{Var: m.StartVars[r], Coef: 1},
			{Var: m.SeqVars[seqKey{start, r}], Coef: -M},
		}
		m.MIP.AddConstraint("first", fmt.Sprintf("fr_%d", r),
			e, mip.GE, m.Shift.StartTime+tt-M)
	}
}
