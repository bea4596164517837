package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is a dcat.Clock that only moves when told to.
type StubClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewStubClock(start time.Time) *StubClock {
	return &StubClock{t: start}
}

// FixedClock starts at 2024-03-01 09:00:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d and returns the new time.
func (c *StubClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// stubIDFormat keeps generated IDs UUID-shaped so they pass the same
// column checks as real document IDs.
const stubIDFormat = "00000000-0000-4000-8000-%012d"

// StubIDGenerator is a dcat.IDGenerator yielding
// 00000000-0000-4000-8000-000000000001, then ...002 and so on.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf(stubIDFormat, g.next)
}
