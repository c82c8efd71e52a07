package blend

// MaxAdditions returns the largest amount of every element a refuel may add
// to current: the refuel cap applied to its current mass, zero when the
// element is absent.
func MaxAdditions(params Params, current Composition) Composition {
	out := make(Composition, len(Elements))
	for _, e := range Elements {
		mass := current[e]
		if mass <= 0 {
			out[e] = 0
			continue
		}
		out[e] = params.MaxRefuelPercentage() * mass
	}
	return out
}
