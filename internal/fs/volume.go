package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dcat-go/internal/dcat"
	"dcat-go/internal/model"
)

// Drive types reported by the prober.
const (
	DriveFixed     = "Fixed"
	DriveRemovable = "Removable"
	DriveNetwork   = "Network"
	DriveRam       = "Ram"
	DriveUnknown   = "Unknown"
)

var networkFilesystems = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smb3": true, "smbfs": true,
	"9p": true, "fuse.sshfs": true, "afs": true, "ceph": true,
}

var ramFilesystems = map[string]bool{"tmpfs": true, "ramfs": true}

// mountEntry is one line of /proc/self/mountinfo.
type mountEntry struct {
	MountPoint string
	FSType     string
	Source     string
}

// parseMountInfo reads the mountinfo format: six or more fields, a "-"
// separator, then filesystem type and source.
func parseMountInfo(r io.Reader) ([]mountEntry, error) {
	var entries []mountEntry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		sep := -1
		for i := 6; i < len(fields); i++ {
			if fields[i] == "-" {
				sep = i
				break
			}
		}
		if sep < 0 || sep+2 >= len(fields) {
			continue
		}
		entries = append(entries, mountEntry{
			MountPoint: unescapeOctal(fields[4]),
			FSType:     fields[sep+1],
			Source:     unescapeOctal(fields[sep+2]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading mountinfo: %w", err)
	}
	return entries, nil
}

// unescapeOctal undoes the \ooo escaping the kernel applies to spaces and
// other separators in mount fields.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeUdev undoes the \xHH escaping udev applies to /dev/disk link
// names.
func unescapeUdev(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// VolumeProber describes mounted volumes from the kernel's mount table,
// udev's /dev/disk links and sysfs.
type VolumeProber struct {
	MountInfo string // Usually /proc/self/mountinfo
	DevRoot   string // Usually /dev; mount sources below it are block devices
	DevDisk   string // Usually /dev/disk
	SysBlock  string // Usually /sys/class/block

	// Usage returns total and available bytes of a mounted filesystem.
	Usage func(mountPoint string) (total, free int64, err error)
}

// NewVolumeProber returns a prober over the live system tables.
func NewVolumeProber() *VolumeProber {
	return &VolumeProber{
		MountInfo: "/proc/self/mountinfo",
		DevRoot:   "/dev",
		DevDisk:   "/dev/disk",
		SysBlock:  "/sys/class/block",
		Usage:     statfsUsage,
	}
}

func (p *VolumeProber) mounts() ([]mountEntry, error) {
	f, err := os.Open(p.MountInfo)
	if err != nil {
		return nil, fmt.Errorf("opening mount table: %w", err)
	}
	defer f.Close()
	return parseMountInfo(f)
}

// mountFor returns the mount whose mount point is the longest prefix of
// path.
func (p *VolumeProber) mountFor(path string) (*mountEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	entries, err := p.mounts()
	if err != nil {
		return nil, err
	}

	var best *mountEntry
	for i := range entries {
		e := &entries[i]
		if !within(e.MountPoint, abs) {
			continue
		}
		// Later entries stack over earlier ones at the same point.
		if best == nil || len(e.MountPoint) >= len(best.MountPoint) {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no mount holds %s", abs)
	}
	return best, nil
}

// MountPointFor returns the mount point holding path without probing the
// device behind it.
func (p *VolumeProber) MountPointFor(path string) (string, error) {
	e, err := p.mountFor(path)
	if err != nil {
		return "", err
	}
	return e.MountPoint, nil
}

// VolumeFor describes the volume whose mount point is the longest prefix
// of path.
func (p *VolumeProber) VolumeFor(path string) (*model.Drive, error) {
	e, err := p.mountFor(path)
	if err != nil {
		return nil, err
	}
	return p.describe(*e), nil
}

// Volumes describes block-device and network mounts. Pseudo filesystems
// are left out, as are repeated mounts of one source.
func (p *VolumeProber) Volumes() ([]*model.Drive, error) {
	entries, err := p.mounts()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*model.Drive
	for _, e := range entries {
		if !p.isDevice(e.Source) && !networkFilesystems[e.FSType] {
			continue
		}
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		out = append(out, p.describe(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriveLetter < out[j].DriveLetter })
	return out, nil
}

// isDevice reports whether a mount source names a block device.
func (p *VolumeProber) isDevice(source string) bool {
	root := p.DevRoot
	if root == "" {
		root = "/dev"
	}
	return strings.HasPrefix(source, filepath.Clean(root)+"/")
}

func within(mountPoint, path string) bool {
	if mountPoint == "/" || mountPoint == path {
		return true
	}
	return strings.HasPrefix(path, mountPoint+"/")
}

func (p *VolumeProber) describe(e mountEntry) *model.Drive {
	d := &model.Drive{
		DriveLetter: e.MountPoint,
		DriveFormat: e.FSType,
		DriveType:   DriveUnknown,
	}

	if p.Usage != nil {
		if total, free, err := p.Usage(e.MountPoint); err == nil {
			d.TotalSize = total
			d.TotalFreeSpace.Int64, d.TotalFreeSpace.Valid = free, true
		}
	}

	switch {
	case networkFilesystems[e.FSType]:
		d.DriveType = DriveNetwork
		d.VolumeLabel = e.Source
		return d
	case ramFilesystems[e.FSType]:
		d.DriveType = DriveRam
		return d
	case !p.isDevice(e.Source):
		return d
	}

	dev := p.resolveDevice(e.Source)
	d.VolumeSerialNumber = p.linkNameFor(filepath.Join(p.DevDisk, "by-uuid"), dev)
	d.VolumeLabel = unescapeUdev(p.linkNameFor(filepath.Join(p.DevDisk, "by-label"), dev))

	disk := p.parentDisk(filepath.Base(dev))
	d.HardwareSerialNumber = p.readSys(disk, "device", "serial")
	if d.HardwareSerialNumber == "" {
		d.HardwareSerialNumber = p.readSys(disk, "device", "wwid")
	}
	d.Model = p.readSys(disk, "device", "model")
	switch p.readSys(disk, "removable") {
	case "1":
		d.DriveType = DriveRemovable
	case "0":
		d.DriveType = DriveFixed
	}
	return d
}

func (p *VolumeProber) resolveDevice(source string) string {
	if real, err := filepath.EvalSymlinks(source); err == nil {
		return real
	}
	return source
}

// linkNameFor returns the name of the link in dir that points at dev.
func (p *VolumeProber) linkNameFor(dir, dev string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		target, err := filepath.EvalSymlinks(filepath.Join(dir, e.Name()))
		if err == nil && target == dev {
			return e.Name()
		}
	}
	return ""
}

// parentDisk maps a partition name such as sda1 to its disk, sda. A name
// that is already a disk maps to itself.
func (p *VolumeProber) parentDisk(name string) string {
	if _, err := os.Stat(filepath.Join(p.SysBlock, name, "partition")); err != nil {
		return name
	}
	real, err := filepath.EvalSymlinks(filepath.Join(p.SysBlock, name))
	if err != nil {
		return name
	}
	return filepath.Base(filepath.Dir(real))
}

func (p *VolumeProber) readSys(disk string, elem ...string) string {
	b, err := os.ReadFile(filepath.Join(append([]string{p.SysBlock, disk}, elem...)...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

var _ dcat.VolumeProber = (*VolumeProber)(nil)
