package blend

import (
	"math"
	"strings"
	"time"
)

// Operation selects which variable families the model activates.
type Operation string

const (
	// OperationRefuel tops up an existing charge within the addition cap.
	OperationRefuel Operation = "refuel"
	// OperationNewBlend synthesizes a blend from scratch.
	OperationNewBlend Operation = "new_blend"
	// OperationOptimiseMixture combines removal, capped addition and fresh
	// production to reach a target mass.
	OperationOptimiseMixture Operation = "optimise_mixture"
	// OperationAuto is an alias of OperationOptimiseMixture.
	OperationAuto Operation = "auto"
)

// Operations lists the accepted operation names.
var Operations = []Operation{OperationRefuel, OperationNewBlend, OperationOptimiseMixture, OperationAuto}

var operationAliases = map[string]Operation{
	"refuel":           OperationRefuel,
	"new_blend":        OperationNewBlend,
	"new-blend":        OperationNewBlend,
	"optimise_mixture": OperationOptimiseMixture,
	"optimize_mixture": OperationOptimiseMixture,
	"optimise":         OperationOptimiseMixture,
	"optimize":         OperationOptimiseMixture,
	"auto":             OperationAuto,
}

// ParseOperation resolves an operation name, ignoring case.
func ParseOperation(s string) (Operation, error) {
	op, ok := operationAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", invalidInput("operation", "unknown operation %q", s)
	}
	return op, nil
}

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationRefuel, OperationNewBlend, OperationOptimiseMixture, OperationAuto:
		return true
	}
	return false
}

// Canonical maps aliases onto the operation they stand for.
func (op Operation) Canonical() Operation {
	if op == OperationAuto {
		return OperationOptimiseMixture
	}
	return op
}

// Request is one optimisation request.
type Request struct {
	Operation Operation `json:"operation" yaml:"operation"`
	// Current is the existing charge. Nil means no charge was supplied; an
	// empty map means the vessel is known to be empty.
	Current      Composition `json:"initial_composition,omitempty" yaml:"initialComposition,omitempty"`
	TargetWeight *float64    `json:"target_weight,omitempty" yaml:"targetWeight,omitempty"`
	// Require lists elements that must be present in the final blend. For
	// new_blend a nil slice means every element.
	Require []Element `json:"require,omitempty" yaml:"require,omitempty"`
	// TimeLimit overrides the solver time limit when positive.
	TimeLimit time.Duration `json:"-" yaml:"-"`
}

// HasTarget reports whether a target weight was supplied.
func (r Request) HasTarget() bool {
	return r.TargetWeight != nil
}

// Target returns the target weight, or zero when none was supplied.
func (r Request) Target() float64 {
	if r.TargetWeight == nil {
		return 0
	}
	return *r.TargetWeight
}

// Validate checks the shape of req before any model is built and returns a
// normalised copy: the operation is canonical, element keys are upper case
// and required elements are de-duplicated. Every failure is an
// *InvalidInputError.
func Validate(req Request) (Request, error) {
	op := req.Operation
	if !op.Valid() {
		parsed, err := ParseOperation(string(op))
		if err != nil {
			return Request{}, err
		}
		op = parsed
	}
	op = op.Canonical()

	out := Request{Operation: op, TimeLimit: req.TimeLimit}

	if req.TimeLimit < 0 {
		return Request{}, invalidInput("time_limit", "must not be negative, got %s", req.TimeLimit)
	}

	if req.Current != nil {
		current, err := normaliseComposition(req.Current)
		if err != nil {
			return Request{}, err
		}
		out.Current = current
	}

	if req.TargetWeight != nil {
		target := *req.TargetWeight
		if math.IsNaN(target) || math.IsInf(target, 0) {
			return Request{}, invalidInput("target_weight", "must be finite, got %g", target)
		}
		if target <= 0 {
			return Request{}, invalidInput("target_weight", "must be positive, got %g", target)
		}
		out.TargetWeight = &target
	}

	if req.Require != nil {
		required, err := normaliseRequired(req.Require)
		if err != nil {
			return Request{}, err
		}
		out.Require = required
	}

	switch op {
	case OperationRefuel:
		if out.Current == nil {
			return Request{}, invalidInput("initial_composition", "required for %s", op)
		}
		if out.Current.Total() <= 0 {
			return Request{}, invalidInput("initial_composition", "refuel needs a non-empty charge")
		}
	case OperationNewBlend:
		if out.TargetWeight == nil {
			return Request{}, invalidInput("target_weight", "required for %s", op)
		}
		if out.Current.Total() > 0 {
			return Request{}, invalidInput("initial_composition", "%s starts from an empty vessel, got %s", op, out.Current)
		}
	case OperationOptimiseMixture:
		if out.Current == nil {
			return Request{}, invalidInput("initial_composition", "required for %s", op)
		}
		if out.TargetWeight == nil {
			return Request{}, invalidInput("target_weight", "required for %s", op)
		}
	}

	return out, nil
}

// ValidateComposition checks a standalone composition, such as the input of
// MaxAdditions, and returns it with canonical element keys.
func ValidateComposition(c Composition) (Composition, error) {
	if c == nil {
		return Composition{}, nil
	}
	return normaliseComposition(c)
}

func normaliseComposition(c Composition) (Composition, error) {
	out := make(Composition, len(c))
	for _, key := range c.keys() {
		e, err := ParseElement(string(key))
		if err != nil {
			return nil, invalidInput("initial_composition", "unknown element %q", key)
		}
		if _, dup := out[e]; dup {
			return nil, invalidInput("initial_composition", "element %s given twice", e)
		}
		mass := c[key]
		if math.IsNaN(mass) || math.IsInf(mass, 0) {
			return nil, invalidInput("initial_composition", "mass of %s must be finite, got %g", e, mass)
		}
		if mass < 0 {
			return nil, invalidInput("initial_composition", "mass of %s must not be negative, got %g", e, mass)
		}
		out[e] = mass
	}
	return out, nil
}

func normaliseRequired(in []Element) ([]Element, error) {
	seen := make(map[Element]bool, len(in))
	for _, raw := range in {
		e, err := ParseElement(string(raw))
		if err != nil {
			return nil, invalidInput("require", "unknown element %q", raw)
		}
		seen[e] = true
	}
	out := make([]Element, 0, len(seen))
	for _, e := range Elements {
		if seen[e] {
			out = append(out, e)
		}
	}
	return out, nil
}
