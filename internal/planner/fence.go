package planner

import "math"

// recomputeFence sets p.fence to the number of the next not-yet-
// completed generator action, or +inf (no fence) once every generator
// has finished (spec §4.4 "generator fence").
func (p *Planner) recomputeFence() {
	for _, n := range p.generators {
		if !p.completedGenerators[n] {
			p.fence = n
			return
		}
	}
	p.fence = math.MaxInt
}
