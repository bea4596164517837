package model

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrInvalidPair is returned for a pair that cannot be stored canonically.
var ErrInvalidPair = errors.New("invalid duplicate pair")

// DuplicateCandidate is an externally recorded pair of files that may hold
// the same content. Pairs are stored once, with FirstID < SecondID.
type DuplicateCandidate struct {
	FirstID        int64
	SecondID       int64
	AreDuplicates  sql.NullBool // Unknown until someone decides
	FirstIsBackup  sql.NullBool
	SecondIsBackup sql.NullBool
	Notes          string
	CreatedAt      sql.NullTime
	UpdatedAt      sql.NullTime
}

// NewDuplicateCandidate builds a normalized pair from two file IDs.
func NewDuplicateCandidate(a, b int64) (*DuplicateCandidate, error) {
	c := &DuplicateCandidate{FirstID: a, SecondID: b}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Normalize orders the pair so FirstID < SecondID. The per-side backup
// flags move with their IDs.
func (c *DuplicateCandidate) Normalize() error {
	if c.FirstID <= 0 || c.SecondID <= 0 {
		return fmt.Errorf("%w: ids must be positive (%d, %d)", ErrInvalidPair, c.FirstID, c.SecondID)
	}
	if c.FirstID == c.SecondID {
		return fmt.Errorf("%w: file %d paired with itself", ErrInvalidPair, c.FirstID)
	}
	if c.FirstID > c.SecondID {
		c.FirstID, c.SecondID = c.SecondID, c.FirstID
		c.FirstIsBackup, c.SecondIsBackup = c.SecondIsBackup, c.FirstIsBackup
	}
	return nil
}

// Other returns the ID paired with id, or 0 when id is not part of the pair.
func (c *DuplicateCandidate) Other(id int64) int64 {
	switch id {
	case c.FirstID:
		return c.SecondID
	case c.SecondID:
		return c.FirstID
	default:
		return 0
	}
}
