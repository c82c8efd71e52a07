package blend

import (
	"fmt"
	"sort"
	"strings"
)

// Element identifies one of the four blend components.
type Element string

const (
	ElementA Element = "A"
	ElementB Element = "B"
	ElementC Element = "C"
	ElementD Element = "D"
)

// Elements lists every element in canonical ratio order.
var Elements = []Element{ElementA, ElementB, ElementC, ElementD}

// Valid reports whether e is one of the four known elements.
func (e Element) Valid() bool {
	switch e {
	case ElementA, ElementB, ElementC, ElementD:
		return true
	}
	return false
}

// ParseElement converts a case-insensitive name into an Element.
func ParseElement(s string) (Element, error) {
	e := Element(strings.ToUpper(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown element %q", s)
	}
	return e, nil
}

// ParseElements parses a comma separated list such as "A,C".
func ParseElements(s string) ([]Element, error) {
	var out []Element
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		e, err := ParseElement(part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Composition maps elements to masses in kg.
type Composition map[Element]float64

// Get returns the mass of e, zero when absent.
func (c Composition) Get(e Element) float64 {
	return c[e]
}

// Total returns the summed mass of the composition.
func (c Composition) Total() float64 {
	total := 0.0
	for _, e := range c.keys() {
		total += c[e]
	}
	return total
}

// Present returns the elements with a positive mass, in canonical order.
func (c Composition) Present() []Element {
	var out []Element
	for _, e := range Elements {
		if c[e] > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a copy; the clone of a nil composition is nil.
func (c Composition) Clone() Composition {
	if c == nil {
		return nil
	}
	out := make(Composition, len(c))
	for e, mass := range c {
		out[e] = mass
	}
	return out
}

// Full returns a copy listing all four elements, zero-filled.
func (c Composition) Full() Composition {
	out := make(Composition, len(Elements))
	for _, e := range Elements {
		out[e] = c[e]
	}
	return out
}

// keys returns the composition keys in a stable order so that float sums
// are reproducible.
func (c Composition) keys() []Element {
	keys := make([]Element, 0, len(c))
	for e := range c {
		keys = append(keys, e)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// String renders the composition as "A=40 B=30 C=20 D=10".
func (c Composition) String() string {
	parts := make([]string, 0, len(c))
	for _, e := range c.keys() {
		parts = append(parts, fmt.Sprintf("%s=%g", e, c[e]))
	}
	return strings.Join(parts, " ")
}

// Price holds the per-kg prices of an element.
type Price struct {
	// Addition is the cost of topping up one kg onto an existing charge.
	Addition float64 `json:"addition" yaml:"addition" mapstructure:"addition"`
	// Extraction is the cost of removing one kg or producing one fresh kg.
	Extraction float64 `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
}

// PriceTable maps every element to its prices.
type PriceTable map[Element]Price

// DefaultPrices returns the reference price table.
func DefaultPrices() PriceTable {
	return PriceTable{
		ElementA: {Addition: 10, Extraction: 5},
		ElementB: {Addition: 12, Extraction: 6},
		ElementC: {Addition: 8, Extraction: 4},
		ElementD: {Addition: 15, Extraction: 7},
	}
}

// Ratio maps every element to its component of the canonical ratio.
type Ratio map[Element]float64

// DefaultRatio returns the canonical 4:3:2:1 ratio.
func DefaultRatio() Ratio {
	return Ratio{ElementA: 4, ElementB: 3, ElementC: 2, ElementD: 1}
}
