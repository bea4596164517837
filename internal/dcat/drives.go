package dcat

import (
	"fmt"
	"slices"
	"strings"

	"dcat-go/internal/drive"
	"dcat-go/internal/model"
)

// Resolution is the outcome of resolving an observed volume.
type Resolution struct {
	Drive         *model.Drive
	Rule          drive.Rule // RuleNone when the drive was created
	Created       bool
	PreviousMount string // Mount point recorded before this observation
}

// ResolveDrive finds the catalogued drive for an observed volume, folds
// the observation into it and records this machine against it. Unknown
// volumes become new drives.
func (s *CatalogService) ResolveDrive(observed *model.Drive) (*model.Drive, error) {
	res, err := s.resolve(observed)
	if err != nil {
		return nil, err
	}
	return res.Drive, nil
}

func (s *CatalogService) resolve(observed *model.Drive) (*Resolution, error) {
	if observed == nil {
		return nil, fmt.Errorf("%w: no volume observation", ErrInvalidArgument)
	}
	now := s.clock.Now().UTC()

	incoming := observed.Clone()
	incoming.AddMachine(s.opts.MachineName)
	if incoming.UpdatedAt.IsZero() {
		incoming.UpdatedAt = now
	}

	existing, rule, err := s.matchDrive(incoming)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Rule: rule}
	var merged *model.Drive
	if existing == nil {
		merged = incoming
		merged.ID = 0
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = now
		}
		res.Created = true
	} else {
		res.PreviousMount = existing.DriveLetter
		merged = drive.Merge(existing, incoming)
	}

	saved, err := s.store.UpsertDrive(merged)
	if err != nil {
		return nil, fmt.Errorf("saving drive: %w", err)
	}
	res.Drive = saved

	if res.Created {
		s.logger.Info("new drive", "id", saved.ID, "mount", saved.DriveLetter, "serial", saved.VolumeSerialNumber, "label", saved.VolumeLabel)
	} else {
		s.logger.Debug("drive matched", "id", saved.ID, "rule", rule.String(), "mount", saved.DriveLetter)
	}
	return res, nil
}

// matchDrive runs the identity cascade against the store.
func (s *CatalogService) matchDrive(observed *model.Drive) (*model.Drive, drive.Rule, error) {
	if observed.ID != 0 {
		d, err := s.store.FindDriveByID(observed.ID)
		if err != nil {
			return nil, drive.RuleNone, fmt.Errorf("finding drive by id: %w", err)
		}
		if d != nil {
			return d, drive.RuleID, nil
		}
	}

	if observed.VolumeSerialNumber != "" {
		d, err := s.store.FindDriveBySerial(observed.VolumeSerialNumber)
		if err != nil {
			return nil, drive.RuleNone, fmt.Errorf("finding drive by serial: %w", err)
		}
		if d != nil {
			return d, drive.RuleSerial, nil
		}
	}

	candidates, err := s.store.FindDrivesByGeometry(observed.DriveFormat, observed.TotalSize, observed.DriveType)
	if err != nil {
		return nil, drive.RuleNone, fmt.Errorf("finding candidate drives: %w", err)
	}
	d, rule := drive.MatchComposite(observed, candidates)
	return d, rule, nil
}

// DriveForPath resolves the drive holding path. Drives are cached by
// mount point for the life of the service.
func (s *CatalogService) DriveForPath(path string) (*model.Drive, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}
	mountPoint, err := s.volumes.MountPointFor(path)
	if err != nil {
		return nil, fmt.Errorf("finding mount of %s: %w", path, err)
	}
	if d, ok := s.drives[mountPoint]; ok {
		return d, nil
	}

	observed, err := s.volumes.VolumeFor(path)
	if err != nil {
		return nil, fmt.Errorf("probing volume of %s: %w", path, err)
	}

	d, err := s.ResolveDrive(observed)
	if err != nil {
		return nil, err
	}
	s.drives[observed.DriveLetter] = d
	return d, nil
}

// RefreshDrives resolves every mounted volume, updating mount points, free
// space and labels of known drives and cataloguing new ones.
func (s *CatalogService) RefreshDrives() ([]*Resolution, error) {
	observed, err := s.volumes.Volumes()
	if err != nil {
		return nil, fmt.Errorf("listing volumes: %w", err)
	}

	var out []*Resolution
	var seen []*model.Drive
	for _, o := range observed {
		if i := slices.IndexFunc(seen, func(d *model.Drive) bool { return drive.SameVolume(d, o) }); i >= 0 {
			s.logger.Debug("volume mounted twice, skipping", "mount", o.DriveLetter, "first", seen[i].DriveLetter)
			continue
		}
		seen = append(seen, o)

		res, err := s.resolve(o)
		if err != nil {
			s.store.Rollback()
			return nil, fmt.Errorf("resolving volume %s: %w", o.DriveLetter, err)
		}
		s.drives[o.DriveLetter] = res.Drive
		if res.PreviousMount != "" && res.PreviousMount != res.Drive.DriveLetter {
			s.logger.Info("drive moved", "id", res.Drive.ID, "from", res.PreviousMount, "to", res.Drive.DriveLetter)
		}
		out = append(out, res)
	}

	if _, err := s.commit("refresh drives"); err != nil {
		return nil, fmt.Errorf("committing drives: %w", err)
	}
	return out, nil
}

// DriveFilter selects drives. Empty fields match everything; text fields
// match case-insensitively.
type DriveFilter struct {
	MountPoint string
	Serial     string
	Label      string
	TotalSize  int64
	Machine    string
}

func (f DriveFilter) matches(d *model.Drive) bool {
	if f.MountPoint != "" && !strings.EqualFold(f.MountPoint, d.DriveLetter) {
		return false
	}
	if f.Serial != "" && !strings.EqualFold(f.Serial, d.VolumeSerialNumber) && !strings.EqualFold(f.Serial, d.HardwareSerialNumber) {
		return false
	}
	if f.Label != "" && !strings.EqualFold(f.Label, d.VolumeLabel) {
		return false
	}
	if f.TotalSize != 0 && f.TotalSize != d.TotalSize {
		return false
	}
	if f.Machine != "" && !d.HasMachine(f.Machine) {
		return false
	}
	return true
}

// FindDrives returns the catalogued drives that satisfy filter.
func (s *CatalogService) FindDrives(filter DriveFilter) ([]*model.Drive, error) {
	all, err := s.store.ListDrives()
	if err != nil {
		return nil, fmt.Errorf("listing drives: %w", err)
	}
	var out []*model.Drive
	for _, d := range all {
		if filter.matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// mountedDrive loads a drive and checks that it is mounted where the
// catalog last saw it, on this machine.
func (s *CatalogService) mountedDrive(id int64) (*model.Drive, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: drive id %d", ErrInvalidArgument, id)
	}
	d, err := s.store.FindDriveByID(id)
	if err != nil {
		return nil, fmt.Errorf("finding drive: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("drive %d: %w", id, ErrNotFound)
	}
	if !d.HasMachine(s.opts.MachineName) {
		return nil, fmt.Errorf("drive %d on %s: %w", id, s.opts.MachineName, ErrNotAttached)
	}

	observed, err := s.volumes.VolumeFor(d.DriveLetter)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", d.DriveLetter, err)
	}
	if observed.DriveLetter != d.DriveLetter {
		return nil, fmt.Errorf("drive %d at %s: %w", id, d.DriveLetter, ErrNotMounted)
	}
	if m, _ := drive.Match(observed, []*model.Drive{d}); m == nil {
		return nil, fmt.Errorf("drive %d at %s holds another volume: %w", id, d.DriveLetter, ErrNotMounted)
	}
	return d, nil
}
