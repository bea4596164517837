package dcat

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"dcat-go/internal/model"
)

// ScanOptions control a scan.
type ScanOptions struct {
	Recursive   bool
	ComputeHash bool
}

// ScanResult counts what a scan did.
type ScanResult struct {
	Added   int
	Updated int
	Hashed  int
	Skipped int // ambiguous matches and files that could not be hashed
}

// Scan indexes a file, or every file below a directory, into the catalog.
// Each file is matched on (directory, name, drive); an unmatched file is
// added and a matched one refreshed. Scanning the same unchanged tree twice
// leaves the catalog as the first scan did.
func (s *CatalogService) Scan(ctx context.Context, rawPath string, opts ScanOptions) (*ScanResult, error) {
	if rawPath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	root, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rawPath, err)
	}

	paths := []*Path{root}
	if root.IsDir() {
		paths, err = s.fsmgr.FindFiles(root, opts.Recursive)
		if err != nil {
			return nil, fmt.Errorf("finding files: %w", err)
		}
	}

	result := &ScanResult{}
	pending := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			if _, cerr := s.commit("scan"); cerr != nil {
				return result, fmt.Errorf("committing scan: %w", cerr)
			}
			return result, err
		}

		if err := s.scanOne(p, opts, result); err != nil {
			s.store.Rollback()
			return result, err
		}

		pending++
		if pending >= s.opts.BatchSize {
			if _, err := s.commit("scan"); err != nil {
				return result, fmt.Errorf("committing scan: %w", err)
			}
			pending = 0
		}
	}

	if _, err := s.commit("scan"); err != nil {
		return result, fmt.Errorf("committing scan: %w", err)
	}

	s.logger.Info("scan complete", "path", root.String(), "added", result.Added, "updated", result.Updated, "hashed", result.Hashed, "skipped", result.Skipped)
	return result, nil
}

func (s *CatalogService) scanOne(p *Path, opts ScanOptions, result *ScanResult) error {
	driveID, dir, name := s.locate(p.String())

	matches, err := s.store.FindFiles(dir, name, driveID)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", p.String(), err)
	}

	var file *model.File
	switch len(matches) {
	case 0:
		file = &model.File{DriveID: driveID}
	case 1:
		file = matches[0]
	default:
		s.logger.Warn("file matches several catalog rows, skipping", "path", p.String(), "matches", len(matches))
		result.Skipped++
		return nil
	}

	isNew := file.ID == 0
	file.CopyFrom(model.Observation{
		DirectoryPath: dir,
		FileName:      name,
		Info:          p.Info(),
		BornAt:        s.fsmgr.BirthTime(p),
	})

	if opts.ComputeHash && file.NeedsHash() {
		if err := s.ComputeHash(file, p, false); err != nil {
			s.logger.Warn("hashing failed", "path", p.String(), "error", err)
			result.Skipped++
		} else {
			result.Hashed++
		}
	}

	if err := s.store.UpsertFile(file); err != nil {
		return fmt.Errorf("saving %s: %w", p.String(), err)
	}

	if isNew {
		result.Added++
		s.logger.Debug("file added", "path", p.String(), "id", file.ID)
	} else {
		result.Updated++
	}
	return nil
}

// locate maps an absolute path to the drive that holds it and the
// drive-relative directory and name. When the drive cannot be resolved the
// drive id is null and the directory stays absolute.
func (s *CatalogService) locate(absPath string) (sql.NullInt64, string, string) {
	d, err := s.DriveForPath(absPath)
	if err == nil {
		dir, name, err := model.SplitPath(d.DriveLetter, absPath)
		if err == nil {
			return sql.NullInt64{Int64: d.ID, Valid: true}, dir, name
		}
		s.logger.Warn("path outside its drive", "path", absPath, "mount", d.DriveLetter, "error", err)
	} else {
		s.logger.Warn("drive unresolved", "path", absPath, "error", err)
	}

	dir, name := filepath.Split(absPath)
	return sql.NullInt64{}, filepath.ToSlash(filepath.Clean(dir)), name
}
