package dcat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"dcat-go/internal/model"
)

// ComputeHash reads the file at path once, feeding both the digest and the
// CRC. Unless force is set only missing values are filled in.
func (s *CatalogService) ComputeHash(file *model.File, path *Path, force bool) error {
	if file == nil || path == nil {
		return fmt.Errorf("%w: nothing to hash", ErrInvalidArgument)
	}
	if !force && !file.NeedsHash() {
		return nil
	}

	r, err := s.fsmgr.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path.String(), err)
	}
	defer r.Close()

	h := s.opts.Digest.NewHash()
	crc, err := s.opts.Checksum.Sum(io.TeeReader(r, h))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path.String(), err)
	}

	if force || file.ContentHash == "" {
		file.ContentHash = s.opts.Digest.Encode(h.Sum(nil))
	}
	if force || file.NeedsCRC() {
		file.SetCRC32(crc)
	}
	return nil
}

// HashOptions bound a hash sweep. Zero values select the service defaults.
type HashOptions struct {
	BatchSize int
	MaxRows   int
}

// SweepResult counts what a hash sweep did.
type SweepResult struct {
	Hashed    int
	Skipped   int
	Committed int64
}

// HashFilesForDrive fills in missing digests and CRCs for a mounted drive,
// smallest files first, committing after every batch. It stops after
// MaxRows files, when no candidates remain, or when ctx is done. Work
// committed before a cancellation is kept.
func (s *CatalogService) HashFilesForDrive(ctx context.Context, driveID int64, opts HashOptions) (*SweepResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.opts.BatchSize
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = s.opts.MaxRows
	}

	d, err := s.mountedDrive(driveID)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	cursor := HashCursor{}
	remaining := opts.MaxRows
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		limit := min(opts.BatchSize, remaining)
		batch, err := s.store.FilesMissingHash(driveID, cursor, limit)
		if err != nil {
			return result, fmt.Errorf("listing files to hash: %w", err)
		}

		for _, f := range batch {
			cursor = HashCursor{Size: f.Size, ID: f.ID}
			if cerr := ctx.Err(); cerr != nil {
				if err := s.flushSweep(result); err != nil {
					return result, err
				}
				return result, cerr
			}

			ok, err := s.hashCatalogued(d, f)
			if err != nil {
				s.store.Rollback()
				return result, err
			}
			if ok {
				result.Hashed++
			} else {
				result.Skipped++
			}
		}
		remaining -= len(batch)

		if err := s.flushSweep(result); err != nil {
			return result, err
		}
		if len(batch) < limit {
			break
		}
	}

	s.logger.Info("hash sweep complete", "drive", driveID, "hashed", result.Hashed, "skipped", result.Skipped)
	return result, nil
}

func (s *CatalogService) flushSweep(result *SweepResult) error {
	n, err := s.commit("hash sweep")
	if err != nil {
		return fmt.Errorf("committing hash batch: %w", err)
	}
	result.Committed += n
	return nil
}

// hashCatalogued refreshes and hashes one catalogued file of a mounted
// drive. Files that vanished or cannot be read are skipped.
func (s *CatalogService) hashCatalogued(d *model.Drive, f *model.File) (bool, error) {
	abs := f.Path(d.DriveLetter)
	p, err := s.fsmgr.Resolve(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("catalogued file missing, skipping", "path", abs)
		} else {
			s.logger.Warn("cannot stat file, skipping", "path", abs, "error", err)
		}
		return false, nil
	}
	if p.IsDir() {
		s.logger.Warn("catalogued file is a directory, skipping", "path", abs)
		return false, nil
	}

	f.CopyFrom(model.Observation{
		DirectoryPath: f.DirectoryPath,
		FileName:      f.FileName,
		Info:          p.Info(),
		BornAt:        s.fsmgr.BirthTime(p),
	})
	if err := s.ComputeHash(f, p, false); err != nil {
		s.logger.Warn("hashing failed, skipping", "path", abs, "error", err)
		return false, nil
	}
	if err := s.store.UpsertFile(f); err != nil {
		return false, fmt.Errorf("saving %s: %w", abs, err)
	}
	return true, nil
}
