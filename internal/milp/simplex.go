package milp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// pivotTol is the smallest tableau entry accepted as a pivot.
	pivotTol = 1e-9
	// feasibilityTol is the phase one residual, measured on rows scaled to
	// a unit largest coefficient, above which a problem is infeasible.
	feasibilityTol = 1e-7
)

// lpRow is one constraint over the free columns of a relaxation.
type lpRow struct {
	coefs map[int]float64
	sense Sense
	rhs   float64
}

type simplexResult struct {
	status Status
	x      []float64
	// residual is the phase one objective left over when infeasible.
	residual float64
}

// tableau is a dense simplex tableau. Rows 0..m-1 hold the constraints and
// row m the reduced costs; column n holds the right-hand side, so the
// objective cell is the negated objective value.
type tableau struct {
	t        *mat.Dense
	m, n     int
	basis    []int
	barred   []bool
	optTol   float64
	pivots   int
	maxPivot int
}

func newTableau(m, n int) *tableau {
	return &tableau{
		t:        mat.NewDense(m+1, n+1, nil),
		m:        m,
		n:        n,
		basis:    make([]int, m),
		barred:   make([]bool, n),
		maxPivot: 50*(m+n) + 100,
	}
}

func (tb *tableau) row(i int) []float64 {
	return tb.t.RawRowView(i)
}

func (tb *tableau) pivot(r, s int) {
	pr := tb.row(r)
	floats.Scale(1/pr[s], pr)
	pr[s] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.row(i)
		if f := ri[s]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[s] = 0
		}
	}
	tb.basis[r] = s
	tb.pivots++
}

// iterate runs the primal simplex with Bland's rule from the current
// feasible basis until it is optimal or an improving ray is found.
func (tb *tableau) iterate() (Status, error) {
	for {
		s := tb.entering()
		if s < 0 {
			return StatusOptimal, nil
		}
		r := tb.leaving(s)
		if r < 0 {
			return StatusUnbounded, nil
		}
		if tb.pivots >= tb.maxPivot {
			return 0, fmt.Errorf("%w: no convergence after %d pivots", ErrNumerical, tb.pivots)
		}
		tb.pivot(r, s)
	}
}

// entering returns the lowest-index column with a negative reduced cost.
func (tb *tableau) entering() int {
	obj := tb.row(tb.m)
	for j := 0; j < tb.n; j++ {
		if !tb.barred[j] && obj[j] < -tb.optTol {
			return j
		}
	}
	return -1
}

// leaving runs the ratio test on column s. Ties go to the row whose basic
// column has the lowest index.
func (tb *tableau) leaving(s int) int {
	best, bestRatio := -1, math.Inf(1)
	for i := 0; i < tb.m; i++ {
		ri := tb.row(i)
		a := ri[s]
		if a <= pivotTol {
			continue
		}
		ratio := math.Max(ri[tb.n], 0) / a
		if best < 0 {
			best, bestRatio = i, ratio
			continue
		}
		tie := 1e-12 * (1 + bestRatio)
		if ratio < bestRatio-tie || (ratio <= bestRatio+tie && tb.basis[i] < tb.basis[best]) {
			best, bestRatio = i, math.Min(ratio, bestRatio)
		}
	}
	return best
}

// setObjective loads cost into the reduced-cost row and prices out the
// current basis.
func (tb *tableau) setObjective(cost []float64) {
	obj := tb.row(tb.m)
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, cost)
	scale := 0.0
	for _, c := range cost {
		scale = math.Max(scale, math.Abs(c))
	}
	tb.optTol = 1e-9 * (1 + scale)
	for i, k := range tb.basis {
		if k < len(cost) && cost[k] != 0 {
			floats.AddScaled(obj, -cost[k], tb.row(i))
			obj[k] = 0
		}
	}
}

// evict pivots artificial columns out of the basis after phase one. A row
// with no usable entry is redundant and keeps its artificial at zero.
func (tb *tableau) evict(artificial []bool) {
	for i := 0; i < tb.m; i++ {
		if !artificial[tb.basis[i]] {
			continue
		}
		ri := tb.row(i)
		best, bestAbs := -1, pivotTol
		for j := 0; j < tb.n; j++ {
			if artificial[j] {
				continue
			}
			if a := math.Abs(ri[j]); a > bestAbs {
				best, bestAbs = j, a
			}
		}
		if best < 0 {
			continue
		}
		ri[tb.n] = 0
		tb.pivot(i, best)
	}
}

// solveStandard minimises cost·y subject to rows and y >= 0 with a
// two-phase simplex. Every row is scaled to a unit largest coefficient and
// oriented to a non-negative right-hand side; rows that need one get an
// artificial column for phase one.
func solveStandard(cost []float64, rows []lpRow, numCols int) (simplexResult, error) {
	m := len(rows)
	if m == 0 {
		for _, c := range cost {
			if c < 0 {
				return simplexResult{status: StatusUnbounded}, nil
			}
		}
		return simplexResult{status: StatusOptimal, x: make([]float64, numCols)}, nil
	}

	senses := make([]Sense, m)
	factors := make([]float64, m)
	rhs := make([]float64, m)
	n := numCols
	slackCol := make([]int, m)
	for i, r := range rows {
		scale := 0.0
		for _, v := range r.coefs {
			scale = math.Max(scale, math.Abs(v))
		}
		factors[i], rhs[i], senses[i] = 1/scale, r.rhs/scale, r.sense
		if rhs[i] < 0 {
			factors[i], rhs[i] = -factors[i], -rhs[i]
			switch r.sense {
			case LessEqual:
				senses[i] = GreaterEqual
			case GreaterEqual:
				senses[i] = LessEqual
			}
		}
		slackCol[i] = -1
		if senses[i] != Equal {
			slackCol[i] = n
			n++
		}
	}
	artCol := make([]int, m)
	numArt := 0
	for i := range rows {
		artCol[i] = -1
		if senses[i] != LessEqual {
			artCol[i] = n
			n++
			numArt++
		}
	}

	tb := newTableau(m, n)
	artificial := make([]bool, n)
	for i, r := range rows {
		ri := tb.row(i)
		for k, v := range r.coefs {
			ri[k] = factors[i] * v
		}
		switch senses[i] {
		case LessEqual:
			ri[slackCol[i]] = 1
		case GreaterEqual:
			ri[slackCol[i]] = -1
		}
		ri[n] = rhs[i]
		if artCol[i] >= 0 {
			ri[artCol[i]] = 1
			artificial[artCol[i]] = true
			tb.basis[i] = artCol[i]
		} else {
			tb.basis[i] = slackCol[i]
		}
	}

	if numArt > 0 {
		phaseOne := make([]float64, n)
		for j := range artificial {
			if artificial[j] {
				phaseOne[j] = 1
			}
		}
		tb.setObjective(phaseOne)
		status, err := tb.iterate()
		if err != nil {
			return simplexResult{}, err
		}
		if status != StatusOptimal {
			return simplexResult{}, fmt.Errorf("%w: phase one did not terminate", ErrNumerical)
		}
		if residual := -tb.row(m)[n]; residual > feasibilityTol {
			return simplexResult{status: StatusInfeasible, residual: residual}, nil
		}
		tb.evict(artificial)
		copy(tb.barred, artificial)
	}

	tb.setObjective(cost)
	status, err := tb.iterate()
	if err != nil {
		return simplexResult{}, err
	}
	if status == StatusUnbounded {
		return simplexResult{status: StatusUnbounded}, nil
	}

	x := make([]float64, numCols)
	for i, k := range tb.basis {
		if k < numCols {
			x[k] = math.Max(0, tb.row(i)[n])
		}
	}
	return simplexResult{status: StatusOptimal, x: x}, nil
}
