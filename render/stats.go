package render

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// median sorts values in place; even counts average the middle pair.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

func maxOf(values []float64) float64 {
	return floats.Max(values)
}
