// Package rules holds the small numeric building blocks shared by the quality
// scorer and the treatment optimizer: ordered breakpoint tables, clamping and
// fixed-precision rounding. Thresholds live in tables so they can be tuned and
// tested without touching control flow.
package rules

import (
	"fmt"
	"math"
)

// Breakpoint maps every input strictly below Below to Value.
type Breakpoint struct {
	Below float64
	Value float64
}

// Table is an ordered list of breakpoints evaluated top-to-bottom; the first
// entry whose Below exceeds the input wins. Inputs past the last entry take
// Default.
type Table struct {
	Name        string
	Breakpoints []Breakpoint
	Default     float64
}

// Lookup returns the value for x using first-match-wins semantics.
func (t Table) Lookup(x float64) float64 {
	for _, bp := range t.Breakpoints {
		if x < bp.Below {
			return bp.Value
		}
	}
	return t.Default
}

// Validate checks that breakpoints are strictly increasing.
func (t Table) Validate() error {
	for i := 1; i < len(t.Breakpoints); i++ {
		if t.Breakpoints[i].Below <= t.Breakpoints[i-1].Below {
			return fmt.Errorf("table %s: breakpoint %d (%.2f) not above breakpoint %d (%.2f)",
				t.Name, i, t.Breakpoints[i].Below, i-1, t.Breakpoints[i-1].Below)
		}
	}
	return nil
}

// Clamp bounds x to [lo, hi] and reports whether it had to move.
func Clamp(x, lo, hi float64) (float64, bool) {
	switch {
	case x < lo:
		return lo, true
	case x > hi:
		return hi, true
	default:
		return x, false
	}
}

// Bound is Clamp without the report.
func Bound(x, lo, hi float64) float64 {
	v, _ := Clamp(x, lo, hi)
	return v
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
