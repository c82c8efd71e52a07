package blend

import (
	"math"

	"github.com/iwvelando/blend-optimizer/pkg/constants"
	"github.com/iwvelando/blend-optimizer/pkg/mathutil"
)

// ParamsSpec is the mutable description of the blend parameters, as read
// from configuration. Turn it into Params with NewParams.
type ParamsSpec struct {
	Prices              PriceTable `json:"prices" yaml:"prices"`
	Ratio               Ratio      `json:"ratios" yaml:"ratios"`
	MaxRefuelPercentage float64    `json:"maxRefuelPercentage" yaml:"maxRefuelPercentage"`
	BigM                float64    `json:"bigM" yaml:"bigM"`
	Epsilon             float64    `json:"epsilon" yaml:"epsilon"`
}

// DefaultSpec returns the reference parameters.
func DefaultSpec() ParamsSpec {
	return ParamsSpec{
		Prices:              DefaultPrices(),
		Ratio:               DefaultRatio(),
		MaxRefuelPercentage: constants.MaxRefuelPercentage,
		BigM:                constants.BigM,
		Epsilon:             constants.Epsilon,
	}
}

// Params is the immutable process-wide configuration of the model: prices,
// canonical ratio and numeric constants. It is safe to share between
// goroutines; accessors return copies.
type Params struct {
	prices PriceTable
	ratio  Ratio
	cap    float64
	bigM   float64
	eps    float64
}

// DefaultParams returns the reference parameters.
func DefaultParams() Params {
	p, err := NewParams(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return p
}

// NewParams validates spec and freezes it. It returns a *ConfigurationError
// when the price table or ratio does not cover exactly the four elements,
// or when a numeric constant is out of range.
func NewParams(spec ParamsSpec) (Params, error) {
	if len(spec.Prices) != len(Elements) {
		return Params{}, configurationError("prices", "expected %d elements, got %d", len(Elements), len(spec.Prices))
	}
	if len(spec.Ratio) != len(Elements) {
		return Params{}, configurationError("ratios", "expected %d components, got %d", len(Elements), len(spec.Ratio))
	}

	prices := make(PriceTable, len(Elements))
	ratio := make(Ratio, len(Elements))
	for _, e := range Elements {
		price, ok := spec.Prices[e]
		if !ok {
			return Params{}, configurationError("prices", "missing element %s", e)
		}
		if price.Addition < 0 || price.Extraction < 0 || !mathutil.IsFinite(price.Addition) || !mathutil.IsFinite(price.Extraction) {
			return Params{}, configurationError("prices", "element %s needs finite non-negative prices, got %+v", e, price)
		}
		prices[e] = price

		r, ok := spec.Ratio[e]
		if !ok {
			return Params{}, configurationError("ratios", "missing element %s", e)
		}
		if r <= 0 || !mathutil.IsFinite(r) {
			return Params{}, configurationError("ratios", "element %s needs a positive component, got %g", e, r)
		}
		ratio[e] = r
	}

	if spec.MaxRefuelPercentage < 0 || spec.MaxRefuelPercentage > 1 || math.IsNaN(spec.MaxRefuelPercentage) {
		return Params{}, configurationError("maxRefuelPercentage", "must be between 0 and 1, got %g", spec.MaxRefuelPercentage)
	}
	if spec.BigM <= 0 || !mathutil.IsFinite(spec.BigM) {
		return Params{}, configurationError("bigM", "must be positive and finite, got %g", spec.BigM)
	}
	if spec.Epsilon <= 0 || spec.Epsilon >= spec.BigM {
		return Params{}, configurationError("epsilon", "must be in (0, bigM), got %g", spec.Epsilon)
	}

	return Params{
		prices: prices,
		ratio:  ratio,
		cap:    spec.MaxRefuelPercentage,
		bigM:   spec.BigM,
		eps:    spec.Epsilon,
	}, nil
}

// Price returns the prices of e.
func (p Params) Price(e Element) Price {
	return p.prices[e]
}

// RatioOf returns the canonical ratio component of e.
func (p Params) RatioOf(e Element) float64 {
	return p.ratio[e]
}

// MaxRefuelPercentage returns the addition cap as a fraction.
func (p Params) MaxRefuelPercentage() float64 {
	return p.cap
}

// BigM returns the Big-M magnitude.
func (p Params) BigM() float64 {
	return p.bigM
}

// Epsilon returns the minimum mass of a used element.
func (p Params) Epsilon() float64 {
	return p.eps
}

// Spec returns a copy of the parameters as a ParamsSpec.
func (p Params) Spec() ParamsSpec {
	prices := make(PriceTable, len(p.prices))
	for e, v := range p.prices {
		prices[e] = v
	}
	ratio := make(Ratio, len(p.ratio))
	for e, v := range p.ratio {
		ratio[e] = v
	}
	return ParamsSpec{
		Prices:              prices,
		Ratio:               ratio,
		MaxRefuelPercentage: p.cap,
		BigM:                p.bigM,
		Epsilon:             p.eps,
	}
}

// maxRatio returns the largest ratio component.
func (p Params) maxRatio() float64 {
	m := 0.0
	for _, r := range p.ratio {
		m = math.Max(m, r)
	}
	return m
}
