package milp

import (
	"math"
)

// fixedEps is the width under which a variable's bounds count as equal.
const fixedEps = 1e-12

type lpResult struct {
	status Status
	value  float64
	x      []float64
	// residual measures how far an infeasible relaxation is from feasible.
	residual float64
}

// solveRelaxation solves the LP relaxation of m for the given objective
// under per-variable bounds lo/hi, with extra appended constraints.
//
// Fixed variables are substituted and the remaining ones are shifted by
// their lower bound, so every column of the standard form is y >= 0. Finite
// upper bounds become rows and equalities stay single rows.
func solveRelaxation(m *Model, obj Expr, lo, hi []float64, extra []Constraint, tol float64) (lpResult, error) {
	n := len(m.vars)

	col := make([]int, n)
	numCols := 0
	for j := 0; j < n; j++ {
		if hi[j] < lo[j]-fixedEps {
			return lpResult{status: StatusInfeasible, residual: lo[j] - hi[j]}, nil
		}
		if hi[j]-lo[j] <= fixedEps {
			col[j] = -1
			continue
		}
		col[j] = numCols
		numCols++
	}

	var rows []lpRow
	// addRow keeps a row over free columns, or checks a row whose columns
	// were all substituted and returns how far it is violated.
	addRow := func(coefs map[int]float64, sense Sense, rhs float64) float64 {
		if len(coefs) > 0 {
			rows = append(rows, lpRow{coefs: coefs, sense: sense, rhs: rhs})
			return 0
		}
		var violation float64
		switch sense {
		case LessEqual:
			violation = -rhs
		case GreaterEqual:
			violation = rhs
		default:
			violation = math.Abs(rhs)
		}
		if violation <= tol*math.Max(1, math.Abs(rhs)) {
			return 0
		}
		return violation
	}

	constraints := make([]Constraint, 0, len(m.constraints)+len(extra))
	constraints = append(constraints, m.constraints...)
	constraints = append(constraints, extra...)
	for _, c := range constraints {
		coefs := make(map[int]float64)
		rhs := c.RHS - c.Expr.Constant
		for _, t := range c.Expr.Terms {
			j := t.Var.index
			rhs -= t.Coef * lo[j]
			if col[j] < 0 || t.Coef == 0 {
				continue
			}
			coefs[col[j]] += t.Coef
		}
		for k, v := range coefs {
			if v == 0 {
				delete(coefs, k)
			}
		}
		if violation := addRow(coefs, c.Sense, rhs); violation > 0 {
			return lpResult{status: StatusInfeasible, residual: violation}, nil
		}
	}

	for j := 0; j < n; j++ {
		if col[j] < 0 || math.IsInf(hi[j], 1) {
			continue
		}
		addRow(map[int]float64{col[j]: 1}, LessEqual, hi[j]-lo[j])
	}

	cost := make([]float64, numCols)
	for _, t := range obj.Terms {
		j := t.Var.index
		if col[j] >= 0 {
			cost[col[j]] += t.Coef
		}
	}

	// Columns without any row are pinned to their lower bound when that is
	// optimal; otherwise the relaxation is unbounded.
	used := make([]bool, numCols)
	for _, r := range rows {
		for k := range r.coefs {
			used[k] = true
		}
	}
	keep := make([]int, numCols)
	kept := 0
	for k := 0; k < numCols; k++ {
		if !used[k] {
			if cost[k] < 0 {
				return lpResult{status: StatusUnbounded}, nil
			}
			keep[k] = -1
			continue
		}
		keep[k] = kept
		kept++
	}

	keptCost := make([]float64, kept)
	for k := 0; k < numCols; k++ {
		if keep[k] >= 0 {
			keptCost[keep[k]] = cost[k]
		}
	}
	for i := range rows {
		coefs := make(map[int]float64, len(rows[i].coefs))
		for k, v := range rows[i].coefs {
			coefs[keep[k]] = v
		}
		rows[i].coefs = coefs
	}

	res, err := solveStandard(keptCost, rows, kept)
	if err != nil {
		return lpResult{}, err
	}
	if res.status != StatusOptimal {
		return lpResult{status: res.status, residual: res.residual}, nil
	}

	x := make([]float64, n)
	copy(x, lo)
	for j := 0; j < n; j++ {
		if col[j] < 0 || keep[col[j]] < 0 {
			continue
		}
		x[j] = math.Min(lo[j]+res.x[keep[col[j]]], hi[j])
	}
	return lpResult{status: StatusOptimal, value: obj.Eval(x), x: x}, nil
}
