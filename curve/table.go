package curve

import "math"

// tableTolerance is how far past either end of the table a distance may be and still be looked up.
const tableTolerance = 1e-9

// BuildDistanceTable samples the cumulative arc length at segments evenly spaced parameter checkpoints.
// segments is clamped to at least 2. The cached length is replaced by the table's total, so the first entry is always 0 and the last is always Length().
func (c *Curve) BuildDistanceTable(segments int) {
	c.mustValid()
	if segments < 2 {
		segments = 2
	}
	spans := segments - 1
	sub := int(math.Ceil(1 / lengthStep / float64(spans)))
	if sub < 1 {
		sub = 1
	}
	table := make([]float64, segments)
	var acc float64
	prev := c.Start
	for i := 1; i < segments; i++ {
		t0 := float64(i-1) / float64(spans)
		t1 := float64(i) / float64(spans)
		for j := 1; j <= sub; j++ {
			p := c.PositionAt(t0 + (t1-t0)*float64(j)/float64(sub))
			acc += p.Sub(prev).Len()
			prev = p
		}
		table[i] = acc
	}
	c.table = table
	c.length = acc
	c.halfway = len(table) - 1
	for i, d := range table {
		if d > acc/2 {
			c.halfway = i
			break
		}
	}
	if c.halfway == 0 {
		c.halfway = 1
	}
}

// Table returns a copy of the distance table.
func (c *Curve) Table() []float64 {
	res := make([]float64, len(c.table))
	copy(res, c.table)
	return res
}

// Bracket returns the index i such that table[i] ≤ distance ≤ table[i+1], or -1 if distance is outside the table.
// The scan starts at the halfway checkpoint and runs toward whichever end distance lies in.
func (c *Curve) Bracket(distance float64) int {
	if c.IsClear() {
		return -1
	}
	if distance < -tableTolerance || distance > c.length+tableTolerance || math.IsNaN(distance) {
		return -1
	}
	last := len(c.table) - 1
	if distance <= c.table[c.halfway] {
		for i := c.halfway - 1; i >= 0; i-- {
			if c.table[i] <= distance {
				return i
			}
		}
		return 0
	}
	for i := c.halfway; i < last; i++ {
		if c.table[i+1] >= distance {
			return i
		}
	}
	return last - 1
}

// DistanceToT maps a distance from the start of the curve to a parameter t ∈ [0, 1].
// ok is false if the distance lies outside the table; callers must treat that as "cannot place here".
func (c *Curve) DistanceToT(distance float64) (t float64, ok bool) {
	i := c.Bracket(distance)
	if i == -1 {
		return 0, false
	}
	lo, hi := c.table[i], c.table[i+1]
	var frac float64
	if hi > lo {
		frac = (distance - lo) / (hi - lo)
	}
	t = (float64(i) + clamp01(frac)) / float64(len(c.table)-1)
	return clamp01(t), true
}
