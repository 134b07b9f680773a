package engine

import "sync/atomic"

// Clock hands out op sequence numbers. Submit stamps every Op.Seq from it
// before the op is queued, so Seq order is submission order even though
// completion order follows remote round trips. The first op an engine
// sees (normally its LoadAll) gets 1.
//
// Engines built with the same Clock (WithClock) share one sequence, which
// orders ops across kinds.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one op. Safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current is the last stamp handed out, 0 before the first.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
