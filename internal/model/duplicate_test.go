package model

import (
	"database/sql"
	"errors"
	"testing"
)

func TestDuplicateCandidate_Normalize(t *testing.T) {
	t.Run("swaps ids and backup flags together", func(t *testing.T) {
		c := &DuplicateCandidate{
			FirstID:        9,
			SecondID:       4,
			FirstIsBackup:  sql.NullBool{Bool: true, Valid: true},
			SecondIsBackup: sql.NullBool{Bool: false, Valid: true},
		}
		if err := c.Normalize(); err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if c.FirstID != 4 || c.SecondID != 9 {
			t.Errorf("ids = (%d, %d), want (4, 9)", c.FirstID, c.SecondID)
		}
		if c.FirstIsBackup.Bool || !c.SecondIsBackup.Bool {
			t.Errorf("backup flags = (%v, %v), want (false, true)", c.FirstIsBackup, c.SecondIsBackup)
		}
	})

	t.Run("ordered pair is unchanged", func(t *testing.T) {
		c := &DuplicateCandidate{FirstID: 1, SecondID: 2, FirstIsBackup: sql.NullBool{Bool: true, Valid: true}}
		if err := c.Normalize(); err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if c.FirstID != 1 || !c.FirstIsBackup.Bool || c.SecondIsBackup.Valid {
			t.Errorf("Normalize() changed an ordered pair: %+v", c)
		}
	})

	t.Run("rejects self pair", func(t *testing.T) {
		if _, err := NewDuplicateCandidate(5, 5); !errors.Is(err, ErrInvalidPair) {
			t.Errorf("NewDuplicateCandidate(5, 5) error = %v, want ErrInvalidPair", err)
		}
	})

	t.Run("rejects unset ids", func(t *testing.T) {
		if _, err := NewDuplicateCandidate(0, 5); !errors.Is(err, ErrInvalidPair) {
			t.Errorf("NewDuplicateCandidate(0, 5) error = %v, want ErrInvalidPair", err)
		}
	})

	t.Run("canonical for all orderings", func(t *testing.T) {
		for x := int64(1); x <= 6; x++ {
			for y := int64(1); y < x; y++ {
				c, err := NewDuplicateCandidate(x, y)
				if err != nil {
					t.Fatalf("NewDuplicateCandidate(%d, %d) error = %v", x, y, err)
				}
				if c.FirstID != y || c.SecondID != x {
					t.Errorf("NewDuplicateCandidate(%d, %d) = (%d, %d)", x, y, c.FirstID, c.SecondID)
				}
				if c.Other(x) != y || c.Other(y) != x || c.Other(99) != 0 {
					t.Errorf("Other() mismatch for (%d, %d)", c.FirstID, c.SecondID)
				}
			}
		}
	})
}

func TestDocumentBlob_IsCompressed(t *testing.T) {
	raw := &DocumentBlob{Length: 3, Payload: []byte("abc")}
	if raw.IsCompressed() {
		t.Error("IsCompressed() = true for equal lengths")
	}
	packed := &DocumentBlob{Length: 3000, Payload: []byte("xyz")}
	if !packed.IsCompressed() {
		t.Error("IsCompressed() = false for a shorter payload")
	}
}
