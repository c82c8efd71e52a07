package blend

import (
	"fmt"
	"math"

	"github.com/iwvelando/blend-optimizer/internal/milp"
)

// elementVars holds the decision variables of one element. Families that
// are inactive for the operation are left unset.
type elementVars struct {
	add, remove, fresh, qty, used milp.Var

	hasAdd, hasRemove, hasFresh bool
}

// Formulation is an assembled model together with the handles needed to
// read a solution back.
type Formulation struct {
	Model     *milp.Model
	Operation Operation
	Current   Composition
	Target    *float64

	params Params
	vars   map[Element]elementVars
	cost   milp.Expr
}

// families lists which variable families an operation activates.
type families struct {
	add, remove, fresh bool
}

func familiesFor(op Operation) families {
	switch op {
	case OperationRefuel:
		return families{add: true}
	case OperationNewBlend:
		return families{fresh: true}
	default:
		return families{add: true, remove: true, fresh: true}
	}
}

// BuildModel validates req and assembles its MILP.
func BuildModel(params Params, req Request) (*Formulation, error) {
	req, err := Validate(req)
	if err != nil {
		return nil, err
	}
	return assemble(params, req), nil
}

// assemble builds the model of an already validated request.
func assemble(params Params, req Request) *Formulation {
	switch req.Operation {
	case OperationRefuel:
		return assembleRefuel(params, req)
	case OperationNewBlend:
		return assembleNewBlend(params, req)
	default:
		return assembleOptimise(params, req)
	}
}

func assembleRefuel(params Params, req Request) *Formulation {
	f := newFormulation(params, req)
	f.addCapConstraints()
	f.addCommonConstraints(req.Require)
	if req.HasTarget() {
		f.addTargetConstraint(req.Target())
	}
	f.Model.Minimize(f.cost)
	if !req.HasTarget() {
		f.Model.ThenMinimize(f.totalAdded())
	}
	return f
}

func assembleNewBlend(params Params, req Request) *Formulation {
	f := newFormulation(params, req)
	require := req.Require
	if require == nil {
		require = Elements
	}
	f.addCommonConstraints(require)
	f.addTargetConstraint(req.Target())
	f.Model.Minimize(f.cost)
	return f
}

func assembleOptimise(params Params, req Request) *Formulation {
	f := newFormulation(params, req)
	f.addCapConstraints()
	f.addCommonConstraints(req.Require)
	f.addTargetConstraint(req.Target())
	f.Model.Minimize(f.cost)
	return f
}

// newFormulation creates the active variable families and the cost
// expression for the operation of req.
func newFormulation(params Params, req Request) *Formulation {
	fam := familiesFor(req.Operation)
	f := &Formulation{
		Model:     milp.NewModel(string(req.Operation)),
		Operation: req.Operation,
		Current:   req.Current.Full(),
		Target:    req.TargetWeight,
		params:    params,
		vars:      make(map[Element]elementVars, len(Elements)),
	}

	inf := math.Inf(1)
	for _, e := range Elements {
		current := f.Current[e]
		price := params.Price(e)
		var ev elementVars

		if fam.add {
			upper := inf
			if current <= 0 {
				upper = 0
			}
			ev.add = f.Model.AddContinuous(varName("add", e), 0, upper)
			ev.hasAdd = true
			f.cost = f.cost.Add(price.Addition, ev.add)
		}
		if fam.remove {
			ev.remove = f.Model.AddContinuous(varName("remove", e), 0, current)
			ev.hasRemove = true
			f.cost = f.cost.Add(price.Extraction, ev.remove)
		}
		if fam.fresh {
			ev.fresh = f.Model.AddContinuous(varName("new", e), 0, inf)
			ev.hasFresh = true
			f.cost = f.cost.Add(price.Extraction, ev.fresh)
		}
		ev.qty = f.Model.AddContinuous(varName("qty", e), 0, inf)
		ev.used = f.Model.AddBinary(varName("used", e))

		f.vars[e] = ev
	}
	return f
}

func varName(family string, e Element) string {
	return family + "_" + string(e)
}

// addCommonConstraints emits the constraint groups shared by every mode:
// mass balance, selection linking, pairwise ratio and at-least-one.
func (f *Formulation) addCommonConstraints(require []Element) {
	for _, e := range Elements {
		f.addMassBalance(e)
		f.addSelectionLink(e)
	}
	f.addRatioConstraints()
	f.addAtLeastOne()
	for _, e := range require {
		f.Model.SetBounds(f.vars[e].used, 1, 1)
	}
}

// addCapConstraints bounds every addition by the refuel cap of the current
// mass. Absent elements already have a zero upper bound on add.
func (f *Formulation) addCapConstraints() {
	for _, e := range Elements {
		current := f.Current[e]
		if current <= 0 {
			continue
		}
		f.Model.AddConstraint("cap_"+string(e), milp.Sum(f.vars[e].add), milp.LessEqual, f.params.MaxRefuelPercentage()*current)
	}
}

// addMassBalance emits qty - add + remove - new = current.
func (f *Formulation) addMassBalance(e Element) {
	ev := f.vars[e]
	expr := milp.Sum(ev.qty)
	if ev.hasAdd {
		expr = expr.Add(-1, ev.add)
	}
	if ev.hasRemove {
		expr = expr.Add(1, ev.remove)
	}
	if ev.hasFresh {
		expr = expr.Add(-1, ev.fresh)
	}
	f.Model.AddConstraint("balance_"+string(e), expr, milp.Equal, f.Current[e])
}

// addSelectionLink ties qty to used: used = 0 forces qty = 0 and used = 1
// forces qty >= epsilon.
func (f *Formulation) addSelectionLink(e Element) {
	ev := f.vars[e]
	f.Model.AddConstraint("link_upper_"+string(e), milp.Expr{}.Add(1, ev.qty).Add(-f.params.BigM(), ev.used), milp.LessEqual, 0)
	f.Model.AddConstraint("link_lower_"+string(e), milp.Expr{}.Add(1, ev.qty).Add(-f.params.Epsilon(), ev.used), milp.GreaterEqual, 0)
}

// addRatioConstraints enforces qty_i * r_j = qty_j * r_i for every pair of
// used elements. The pair is relaxed by BigM as soon as one of them is
// unused.
func (f *Formulation) addRatioConstraints() {
	bigM := f.params.BigM()
	for i := 0; i < len(Elements); i++ {
		for j := i + 1; j < len(Elements); j++ {
			ei, ej := Elements[i], Elements[j]
			vi, vj := f.vars[ei], f.vars[ej]
			ri, rj := f.params.RatioOf(ei), f.params.RatioOf(ej)

			indicators := milp.Expr{}.Add(bigM, vi.used).Add(bigM, vj.used)
			forward := milp.Expr{}.Add(rj, vi.qty).Add(-ri, vj.qty).Plus(indicators)
			backward := milp.Expr{}.Add(-rj, vi.qty).Add(ri, vj.qty).Plus(indicators)

			f.Model.AddConstraint(fmt.Sprintf("ratio_%s%s_upper", ei, ej), forward, milp.LessEqual, 2*bigM)
			f.Model.AddConstraint(fmt.Sprintf("ratio_%s%s_lower", ei, ej), backward, milp.LessEqual, 2*bigM)
		}
	}
}

func (f *Formulation) addAtLeastOne() {
	used := make([]milp.Var, 0, len(Elements))
	for _, e := range Elements {
		used = append(used, f.vars[e].used)
	}
	f.Model.AddConstraint("at_least_one", milp.Sum(used...), milp.GreaterEqual, 1)
}

func (f *Formulation) addTargetConstraint(target float64) {
	qty := make([]milp.Var, 0, len(Elements))
	for _, e := range Elements {
		qty = append(qty, f.vars[e].qty)
	}
	f.Model.AddConstraint("target", milp.Sum(qty...), milp.Equal, target)
}

func (f *Formulation) totalAdded() milp.Expr {
	var expr milp.Expr
	for _, e := range Elements {
		if ev := f.vars[e]; ev.hasAdd {
			expr = expr.Add(1, ev.add)
		}
	}
	return expr
}

// Cost returns the objective expression.
func (f *Formulation) Cost() milp.Expr {
	return f.cost
}

// Quantity returns the handle of qty_e.
func (f *Formulation) Quantity(e Element) milp.Var {
	return f.vars[e].qty
}

// Used returns the handle of used_e.
func (f *Formulation) Used(e Element) milp.Var {
	return f.vars[e].used
}
