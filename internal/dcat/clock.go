package dcat

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time so tests can pin it.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator hands out document IDs.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
