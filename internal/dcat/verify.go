package dcat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"dcat-go/internal/drive"
	"dcat-go/internal/model"
)

// VerifyResult counts what a verification pass did.
type VerifyResult struct {
	Checked  int
	Missing  int
	Restored int
	Hashed   int
	Skipped  int
}

// VerifyFilesExist walks every catalogued file of a mounted drive. Files
// gone from disk are soft-deleted; files still present are refreshed, and
// a soft-deleted file that reappeared becomes live again.
func (s *CatalogService) VerifyFilesExist(ctx context.Context, driveID int64, computeHash bool) (*VerifyResult, error) {
	d, err := s.mountedDrive(driveID)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{}
	now := s.clock.Now()
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := s.store.ListFilesByDrive(driveID, afterID, s.opts.BatchSize)
		if err != nil {
			return result, fmt.Errorf("listing files: %w", err)
		}

		for _, f := range page {
			afterID = f.ID
			if err := s.verifyOne(d, f, now, computeHash, result); err != nil {
				s.store.Rollback()
				return result, err
			}
		}

		if _, err := s.commit("verify"); err != nil {
			return result, fmt.Errorf("committing verify batch: %w", err)
		}
		if len(page) < s.opts.BatchSize {
			break
		}
	}

	s.logger.Info("verify complete", "drive", driveID, "checked", result.Checked, "missing", result.Missing, "restored", result.Restored)
	return result, nil
}

func (s *CatalogService) verifyOne(d *model.Drive, f *model.File, now time.Time, computeHash bool, result *VerifyResult) error {
	result.Checked++
	abs := f.Path(d.DriveLetter)

	p, err := s.fsmgr.Resolve(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist) || (err == nil && p.IsDir()):
		if !f.Exists {
			return nil
		}
		f.MarkMissing(now)
		result.Missing++
		s.logger.Debug("file missing", "path", abs)
	case err != nil:
		s.logger.Warn("cannot stat file, skipping", "path", abs, "error", err)
		result.Skipped++
		return nil
	default:
		if !f.Exists {
			result.Restored++
			s.logger.Debug("file reappeared", "path", abs)
		}
		f.CopyFrom(model.Observation{
			DirectoryPath: f.DirectoryPath,
			FileName:      f.FileName,
			Info:          p.Info(),
			BornAt:        s.fsmgr.BirthTime(p),
		})
		if computeHash && f.NeedsHash() {
			if err := s.ComputeHash(f, p, false); err != nil {
				s.logger.Warn("hashing failed", "path", abs, "error", err)
			} else {
				result.Hashed++
			}
		}
	}

	if err := s.store.UpsertFile(f); err != nil {
		return fmt.Errorf("saving %s: %w", abs, err)
	}
	return nil
}

// DeleteFiles soft-deletes the catalog rows for a file path. Rows on
// drives this machine has never seen, or on a volume other than the one
// now holding the path, are left alone. With removeFromDisk the file is
// deleted first. It returns the number of rows marked.
func (s *CatalogService) DeleteFiles(rawPath string, removeFromDisk bool) (int, error) {
	if rawPath == "" {
		return 0, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", rawPath, err)
	}

	mountPoint, err := s.volumes.MountPointFor(abs)
	if err != nil {
		return 0, fmt.Errorf("finding mount of %s: %w", abs, err)
	}
	dir, name, err := model.SplitPath(mountPoint, abs)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	rows, err := s.store.FindFiles(dir, name, sql.NullInt64{})
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", abs, err)
	}

	var targets []*model.File
	for _, f := range rows {
		if !f.DriveID.Valid {
			continue
		}
		d, err := s.store.FindDriveByID(f.DriveID.Int64)
		if err != nil {
			return 0, fmt.Errorf("finding drive: %w", err)
		}
		if d == nil || !d.HasMachine(s.opts.MachineName) {
			continue
		}
		if m, _ := drive.Match(observed, []*model.Drive{d}); m == nil {
			continue
		}
		targets = append(targets, f)
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("%s: %w", abs, ErrNotFound)
	}

	if removeFromDisk {
		p, err := s.fsmgr.Resolve(abs)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("file already gone from disk", "path", abs)
		case err != nil:
			return 0, fmt.Errorf("resolving %s: %w", abs, err)
		default:
			if err := s.fsmgr.Remove(p); err != nil {
				return 0, fmt.Errorf("removing %s: %w", abs, err)
			}
			s.logger.Info("file removed from disk", "path", abs)
		}
	}

	now := s.clock.Now()
	for _, f := range targets {
		f.MarkMissing(now)
		if err := s.store.UpsertFile(f); err != nil {
			s.store.Rollback()
			return 0, fmt.Errorf("saving %s: %w", abs, err)
		}
	}
	if _, err := s.commit("delete"); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return len(targets), nil
}

// FindFilesByName returns catalogued files with the given name on any
// drive.
func (s *CatalogService) FindFilesByName(name string) ([]*model.File, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidArgument)
	}
	return s.store.FindFilesByName(name)
}
