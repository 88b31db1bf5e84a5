package scenario

import (
	"math/rand/v2"

	"eq-coach-service/internal/models"
)

// maxRerolls bounds how often Next re-draws to avoid the current scenario.
const maxRerolls = 3

// Picker draws random scenarios from a pool.
type Picker struct {
	pool *Pool
	intn func(n int) int
}

// NewPicker creates a picker over pool.
func NewPicker(pool *Pool) *Picker {
	return &Picker{pool: pool, intn: rand.IntN}
}

// Pick returns a random scenario for mode.
func (p *Picker) Pick(mode models.Mode) models.Scenario {
	list := p.pool.For(mode)
	if len(list) == 0 {
		return models.Scenario{}
	}
	return list[p.intn(len(list))]
}

// Next returns a random scenario different from current when possible,
// re-drawing at most maxRerolls times.
func (p *Picker) Next(mode models.Mode, current string) models.Scenario {
	list := p.pool.For(mode)
	if len(list) == 0 {
		return models.Scenario{}
	}

	next := list[p.intn(len(list))]
	for attempts := 0; next.Label == current && attempts < maxRerolls; attempts++ {
		next = list[p.intn(len(list))]
	}
	return next
}
