package mip

import (
	"bufio"
	"fmt"
	"io"
)

// WriteLP serializes the model in CPLEX LP text format for external
// inspection or for feeding a standalone solver.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Maximize")
	fmt.Fprint(bw, " obj:")
	writeExpr(bw, m.obj, m.vars)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Subject To")
	for _, c := range m.cons {
		fmt.Fprintf(bw, " %s:", c.Name)
		writeExpr(bw, c.Expr, m.vars)
		fmt.Fprintf(bw, " %s %g\n", c.Rel, c.RHS)
	}
	fmt.Fprintln(bw, "Bounds")
	for _, v := range m.vars {
		if v.Kind == Continuous {
			fmt.Fprintf(bw, " %g <= %s <= %g\n", v.Lo, v.Name, v.Hi)
		}
	}
	fmt.Fprintln(bw, "Binaries")
	for _, v := range m.vars {
		if v.Kind == Binary {
			fmt.Fprintf(bw, " %s\n", v.Name)
		}
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeExpr(w io.Writer, e Expr, vars []Var) {
	if len(e) == 0 {
		return
	}
	for i, t := range e {
		coef := t.Coef
		sign := "+"
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if i == 0 && sign == "+" {
			fmt.Fprintf(w, " %g %s", coef, vars[t.Var].Name)
			continue
		}
		fmt.Fprintf(w, " %s %g %s", sign, coef, vars[t.Var].Name)
	}
}
