// Package mip holds a solver-agnostic mixed-integer linear model: variables,
// linear constraints grouped into named families, and a single objective.
// It knows nothing about rides or zones; the plan package builds models on
// top of it and any solving capability can consume them.
package mip

import (
	"fmt"
	"math"
)

type VarKind int

const (
	Binary VarKind = iota
	Continuous
)

type VarID int

type Var struct {
	ID   VarID
	Name string
	Kind VarKind
	Lo   float64
	Hi   float64
}

type Term struct {
	Var  VarID
	Coef float64
}

type Expr []Term

type Rel int

const (
	LE Rel = iota
	GE
	EQ
)

func (r Rel) String() string {
	switch r {
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "<="
	}
}

// Constraint is a linear relation over the variables. Family tags group
// constraints by the modeling rule that produced them so violations can be
// reported per family.
type Constraint struct {
	Name   string
	Family string
	Expr   Expr
	Rel    Rel
	RHS    float64
}

type Model struct {
	vars     []Var
	cons     []Constraint
	obj      Expr
	maximize bool
}

func New() *Model { return &Model{maximize: true} }

func (m *Model) AddBinary(name string) VarID {
	id := VarID(len(m.vars))
	m.vars = append(m.vars, Var{ID: id, Name: name, Kind: Binary, Lo: 0, Hi: 1})
	return id
}

func (m *Model) AddContinuous(name string, lo, hi float64) VarID {
	id := VarID(len(m.vars))
	m.vars = append(m.vars, Var{ID: id, Name: name, Kind: Continuous, Lo: lo, Hi: hi})
	return id
}

func (m *Model) AddConstraint(family, name string, e Expr, rel Rel, rhs float64) {
	m.cons = append(m.cons, Constraint{Name: name, Family: family, Expr: e, Rel: rel, RHS: rhs})
}

// SetMaximize installs the objective expression.
func (m *Model) SetMaximize(e Expr) { m.obj = e; m.maximize = true }

func (m *Model) NumVars() int             { return len(m.vars) }
func (m *Model) NumConstraints() int      { return len(m.cons) }
func (m *Model) Vars() []Var              { return m.vars }
func (m *Model) Constraints() []Constraint { return m.cons }

// Objective evaluates the objective at an assignment.
func (m *Model) Objective(assign []float64) float64 {
	return eval(m.obj, assign)
}

func eval(e Expr, assign []float64) float64 {
	v := 0.0
	for _, t := range e {
		v += t.Coef * assign[t.Var]
	}
	return v
}

// Violation reports one constraint or bound an assignment does not satisfy.
type Violation struct {
	Constraint Constraint
	Activity   float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("constraint %s (%s): activity %.4f %s %.4f violated",
		v.Constraint.Name, v.Constraint.Family, v.Activity, v.Constraint.Rel, v.Constraint.RHS)
}

// Check verifies an assignment against bounds, integrality, and every
// constraint. It returns all violations so callers can report the family at
// fault rather than failing on the first.
func (m *Model) Check(assign []float64, tol float64) []Violation {
	var out []Violation
	if len(assign) != len(m.vars) {
		return []Violation{{Constraint: Constraint{Name: "assignment", Family: "shape"}, Activity: float64(len(assign))}}
	}
	for _, v := range m.vars {
		x := assign[v.ID]
		if x < v.Lo-tol || x > v.Hi+tol {
			out = append(out, Violation{Constraint: Constraint{Name: v.Name, Family: "bounds", Rel: LE, RHS: v.Hi}, Activity: x})
		}
		if v.Kind == Binary && math.Abs(x-math.Round(x)) > tol {
			out = append(out, Violation{Constraint: Constraint{Name: v.Name, Family: "integrality", Rel: EQ, RHS: math.Round(x)}, Activity: x})
		}
	}
	for _, c := range m.cons {
		act := eval(c.Expr, assign)
		ok := true
		switch c.Rel {
		case LE:
			ok = act <= c.RHS+tol
		case GE:
			ok = act >= c.RHS-tol
		case EQ:
			ok = math.Abs(act-c.RHS) <= tol
		}
		if !ok {
			out = append(out, Violation{Constraint: c, Activity: act})
		}
	}
	return out
}
