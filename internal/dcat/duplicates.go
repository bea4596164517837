package dcat

import (
	"database/sql"
	"fmt"

	"dcat-go/internal/model"
)

// DuplicateInput describes a pair of files someone judged as possible
// duplicates. Order does not matter; the pair is stored canonically.
type DuplicateInput struct {
	FirstID        int64
	SecondID       int64
	AreDuplicates  sql.NullBool
	FirstIsBackup  sql.NullBool
	SecondIsBackup sql.NullBool
	Notes          string
}

// RecordDuplicate stores or updates a duplicate candidate pair.
func (s *CatalogService) RecordDuplicate(in DuplicateInput) (*model.DuplicateCandidate, error) {
	c := &model.DuplicateCandidate{
		FirstID:        in.FirstID,
		SecondID:       in.SecondID,
		AreDuplicates:  in.AreDuplicates,
		FirstIsBackup:  in.FirstIsBackup,
		SecondIsBackup: in.SecondIsBackup,
		Notes:          in.Notes,
	}
	if err := c.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	for _, id := range []int64{c.FirstID, c.SecondID} {
		f, err := s.store.FindFileByID(id)
		if err != nil {
			return nil, fmt.Errorf("finding file %d: %w", id, err)
		}
		if f == nil {
			return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
		}
	}

	now := sql.NullTime{Time: s.clock.Now().UTC(), Valid: true}
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.UpsertDuplicate(c); err != nil {
		s.store.Rollback()
		return nil, fmt.Errorf("saving duplicate pair: %w", err)
	}
	if _, err := s.commit("duplicate"); err != nil {
		return nil, fmt.Errorf("committing duplicate pair: %w", err)
	}

	s.logger.Info("duplicate pair recorded", "first", c.FirstID, "second", c.SecondID)

	// The stored row merges this input with earlier decisions.
	pairs, err := s.store.FindDuplicates(c.FirstID)
	if err != nil {
		return nil, fmt.Errorf("reading duplicate pair: %w", err)
	}
	for _, p := range pairs {
		if p.FirstID == c.FirstID && p.SecondID == c.SecondID {
			return p, nil
		}
	}
	return c, nil
}

// ListDuplicates returns the pairs a file belongs to.
func (s *CatalogService) ListDuplicates(fileID int64) ([]*model.DuplicateCandidate, error) {
	if fileID <= 0 {
		return nil, fmt.Errorf("%w: file id %d", ErrInvalidArgument, fileID)
	}
	return s.store.FindDuplicates(fileID)
}
