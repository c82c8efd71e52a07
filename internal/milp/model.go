// Package milp provides a small mixed-integer linear programming layer:
// a model made of bounded continuous and binary variables, linear
// constraints and one or more objectives minimised in lexicographic order,
// plus the Solver interface that turns a model into a Solution.
package milp

import (
	"fmt"
	"math"
)

// VarKind distinguishes continuous variables from binary ones.
type VarKind int

const (
	// Continuous variables take any value within their bounds.
	Continuous VarKind = iota
	// Binary variables take the value 0 or 1.
	Binary
)

// String returns the lower-case name of the kind.
func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
}

// Var is a handle to a variable owned by a Model.
type Var struct {
	index int
}

// Index returns the position of the variable inside its model.
func (v Var) Index() int {
	return v.index
}

// Variable describes a decision variable.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Sense is the relation of a constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

// String returns the operator symbol of the sense.
func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression: the sum of its terms plus a constant.
// Expr values are immutable; every builder method returns a new Expr.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Sum returns the expression v1 + v2 + ... with unit coefficients.
func Sum(vars ...Var) Expr {
	terms := make([]Term, 0, len(vars))
	for _, v := range vars {
		terms = append(terms, Term{Var: v, Coef: 1})
	}
	return Expr{Terms: terms}
}

// Add returns e + coef·v.
func (e Expr) Add(coef float64, v Var) Expr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+1)
	copy(terms, e.Terms)
	terms = append(terms, Term{Var: v, Coef: coef})
	return Expr{Terms: terms, Constant: e.Constant}
}

// AddConstant returns e + c.
func (e Expr) AddConstant(c float64) Expr {
	terms := make([]Term, len(e.Terms))
	copy(terms, e.Terms)
	return Expr{Terms: terms, Constant: e.Constant + c}
}

// Plus returns e + other.
func (e Expr) Plus(other Expr) Expr {
	terms := make([]Term, 0, len(e.Terms)+len(other.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, other.Terms...)
	return Expr{Terms: terms, Constant: e.Constant + other.Constant}
}

// Scale returns k·e.
func (e Expr) Scale(k float64) Expr {
	terms := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		terms[i] = Term{Var: t.Var, Coef: t.Coef * k}
	}
	return Expr{Terms: terms, Constant: e.Constant * k}
}

// Eval evaluates the expression against a full variable assignment.
func (e Expr) Eval(values []float64) float64 {
	total := e.Constant
	for _, t := range e.Terms {
		total += t.Coef * values[t.Var.index]
	}
	return total
}

// Constraint is the linear relation Expr (Sense) RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Satisfied reports whether the constraint holds for values within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Model holds the variables, constraints and objectives of one problem.
// A Model is not safe for concurrent mutation; build one per solve.
type Model struct {
	name        string
	vars        []Variable
	byName      map[string]Var
	constraints []Constraint
	objectives  []Expr
}

// NewModel returns an empty minimisation model.
func NewModel(name string) *Model {
	return &Model{name: name, byName: make(map[string]Var)}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// AddContinuous adds a continuous variable with the given bounds. The lower
// bound must be finite; use math.Inf(1) for an unbounded upper side.
func (m *Model) AddContinuous(name string, lower, upper float64) Var {
	return m.addVar(Variable{Name: name, Kind: Continuous, Lower: lower, Upper: upper})
}

// AddBinary adds a 0/1 variable.
func (m *Model) AddBinary(name string) Var {
	return m.addVar(Variable{Name: name, Kind: Binary, Lower: 0, Upper: 1})
}

func (m *Model) addVar(v Variable) Var {
	if _, exists := m.byName[v.Name]; exists {
		panic(fmt.Sprintf("milp: duplicate variable %q", v.Name))
	}
	if math.IsInf(v.Lower, 0) || math.IsNaN(v.Lower) {
		panic(fmt.Sprintf("milp: variable %q needs a finite lower bound", v.Name))
	}
	handle := Var{index: len(m.vars)}
	m.vars = append(m.vars, v)
	m.byName[v.Name] = handle
	return handle
}

// SetBounds replaces the bounds of an existing variable.
func (m *Model) SetBounds(v Var, lower, upper float64) {
	if math.IsInf(lower, 0) || math.IsNaN(lower) {
		panic(fmt.Sprintf("milp: variable %q needs a finite lower bound", m.vars[v.index].Name))
	}
	m.vars[v.index].Lower = lower
	m.vars[v.index].Upper = upper
}

// Lookup finds a variable by name.
func (m *Model) Lookup(name string) (Var, bool) {
	v, ok := m.byName[name]
	return v, ok
}

// Variable returns the definition behind a handle.
func (m *Model) Variable(v Var) Variable {
	return m.vars[v.index]
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int {
	return len(m.vars)
}

// Variables returns a copy of all variable definitions in index order.
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.vars))
	copy(out, m.vars)
	return out
}

// AddConstraint appends the constraint expr (sense) rhs.
func (m *Model) AddConstraint(name string, expr Expr, sense Sense, rhs float64) {
	for _, t := range expr.Terms {
		if t.Var.index < 0 || t.Var.index >= len(m.vars) {
			panic(fmt.Sprintf("milp: constraint %q references an unknown variable", name))
		}
	}
	m.constraints = append(m.constraints, Constraint{Name: name, Expr: expr, Sense: sense, RHS: rhs})
}

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// Minimize sets the primary objective, discarding any previous objectives.
func (m *Model) Minimize(expr Expr) {
	m.objectives = []Expr{expr}
}

// ThenMinimize appends a lower-priority objective. It is optimised only
// among the solutions that are optimal for every earlier objective.
func (m *Model) ThenMinimize(expr Expr) {
	m.objectives = append(m.objectives, expr)
}

// Objectives returns the objectives in priority order.
func (m *Model) Objectives() []Expr {
	out := make([]Expr, len(m.objectives))
	copy(out, m.objectives)
	return out
}

// Binaries returns the handles of every binary variable.
func (m *Model) Binaries() []Var {
	var out []Var
	for i, v := range m.vars {
		if v.Kind == Binary {
			out = append(out, Var{index: i})
		}
	}
	return out
}
