package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMountInfo = `22 1 8:2 / / rw,relatime shared:1 - ext4 /dev/sda2 rw
23 22 0:21 / /proc rw,nosuid - proc proc rw
24 22 0:22 / /tmp rw shared:5 - tmpfs tmpfs rw,size=8g
40 22 8:17 / /media/me/My\040Disk rw,nosuid shared:30 - exfat /dev/sdb1 rw,uid=1000
41 22 0:50 / /mnt/nas rw,relatime shared:31 - nfs4 nas:/export rw,vers=4.2
42 22 8:17 / /media/me/again rw shared:32 - exfat /dev/sdb1 rw
malformed line
`

func TestParseMountInfo(t *testing.T) {
	entries, err := parseMountInfo(strings.NewReader(sampleMountInfo))
	if err != nil {
		t.Fatalf("parseMountInfo() error = %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("parseMountInfo() returned %d entries, want 6", len(entries))
	}
	want := mountEntry{MountPoint: "/media/me/My Disk", FSType: "exfat", Source: "/dev/sdb1"}
	if entries[3] != want {
		t.Errorf("entries[3] = %+v, want %+v", entries[3], want)
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"octal space", unescapeOctal, `My\040Disk`, "My Disk"},
		{"octal backslash", unescapeOctal, `a\134b`, `a\b`},
		{"octal truncated", unescapeOctal, `end\04`, `end\04`},
		{"octal plain", unescapeOctal, "plain", "plain"},
		{"udev space", unescapeUdev, `My\x20Disk`, "My Disk"},
		{"udev invalid", unescapeUdev, `bad\xZZ`, `bad\xZZ`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("unescape(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// fakeSystem lays out mountinfo, /dev/disk links and sysfs under a temp
// dir. Device nodes are plain files.
func fakeSystem(t *testing.T) *VolumeProber {
	t.Helper()
	root := t.TempDir()
	mk := func(path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	link := func(target, path string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(target, path); err != nil {
			t.Fatal(err)
		}
	}

	dev := filepath.Join(root, "dev")
	mk(filepath.Join(dev, "sdb1"), "")
	link(filepath.Join(dev, "sdb1"), filepath.Join(dev, "disk", "by-uuid", "6A1F-03B2"))
	link(filepath.Join(dev, "sdb1"), filepath.Join(dev, "disk", "by-label", `My\x20Disk`))

	sys := filepath.Join(root, "sys")
	disk := filepath.Join(sys, "devices", "usb1", "block", "sdb")
	mk(filepath.Join(disk, "removable"), "1\n")
	mk(filepath.Join(disk, "device", "serial"), "SN-123\n")
	mk(filepath.Join(disk, "device", "model"), "Flash Drive\n")
	mk(filepath.Join(disk, "sdb1", "partition"), "1\n")
	link(disk, filepath.Join(sys, "class", "block", "sdb"))
	link(filepath.Join(disk, "sdb1"), filepath.Join(sys, "class", "block", "sdb1"))

	info := strings.ReplaceAll(sampleMountInfo, " /dev/", " "+dev+"/")
	mk(filepath.Join(root, "mountinfo"), info)

	return &VolumeProber{
		MountInfo: filepath.Join(root, "mountinfo"),
		DevRoot:   dev,
		DevDisk:   filepath.Join(dev, "disk"),
		SysBlock:  filepath.Join(sys, "class", "block"),
		Usage: func(string) (int64, int64, error) {
			return 64 << 30, 10 << 30, nil
		},
	}
}

func TestVolumeProber_VolumeFor(t *testing.T) {
	p := fakeSystem(t)

	d, err := p.VolumeFor("/media/me/My Disk/photos/a.jpg")
	if err != nil {
		t.Fatalf("VolumeFor() error = %v", err)
	}

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"DriveLetter", d.DriveLetter, "/media/me/My Disk"},
		{"DriveFormat", d.DriveFormat, "exfat"},
		{"DriveType", d.DriveType, DriveRemovable},
		{"VolumeSerialNumber", d.VolumeSerialNumber, "6A1F-03B2"},
		{"VolumeLabel", d.VolumeLabel, "My Disk"},
		{"HardwareSerialNumber", d.HardwareSerialNumber, "SN-123"},
		{"Model", d.Model, "Flash Drive"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if d.TotalSize != 64<<30 || !d.TotalFreeSpace.Valid || d.TotalFreeSpace.Int64 != 10<<30 {
		t.Errorf("sizes = %d / %v", d.TotalSize, d.TotalFreeSpace)
	}
	if d.ID != 0 {
		t.Errorf("ID = %d, want 0 for an observation", d.ID)
	}

	t.Run("prefix is not a mount", func(t *testing.T) {
		d, err := p.VolumeFor("/media/me/My Diskette/x")
		if err != nil {
			t.Fatalf("VolumeFor() error = %v", err)
		}
		if d.DriveLetter != "/" {
			t.Errorf("DriveLetter = %q, want /", d.DriveLetter)
		}
	})

	t.Run("network and ram", func(t *testing.T) {
		nas, _ := p.VolumeFor("/mnt/nas/share")
		if nas.DriveType != DriveNetwork || nas.VolumeLabel != "nas:/export" {
			t.Errorf("nas = %+v", nas)
		}
		tmp, _ := p.VolumeFor("/tmp/x")
		if tmp.DriveType != DriveRam {
			t.Errorf("tmp DriveType = %q, want %q", tmp.DriveType, DriveRam)
		}
	})
}

func TestVolumeProber_Volumes(t *testing.T) {
	p := fakeSystem(t)

	vols, err := p.Volumes()
	if err != nil {
		t.Fatalf("Volumes() error = %v", err)
	}
	var mounts []string
	for _, v := range vols {
		mounts = append(mounts, v.DriveLetter)
	}
	want := []string{"/", "/media/me/My Disk", "/mnt/nas"}
	if strings.Join(mounts, ",") != strings.Join(want, ",") {
		t.Errorf("Volumes() mounts = %v, want %v", mounts, want)
	}
}

func TestVolumeProber_MountPointFor(t *testing.T) {
	p := fakeSystem(t)

	tests := []struct {
		path string
		want string
	}{
		{"/media/me/My Disk/photos/a.jpg", "/media/me/My Disk"},
		{"/media/me/again", "/media/me/again"},
		{"/home/me/notes.txt", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := p.MountPointFor(tt.path)
			if err != nil {
				t.Fatalf("MountPointFor() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MountPointFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeProber_isDevice(t *testing.T) {
	tests := []struct {
		name    string
		devRoot string
		source  string
		want    bool
	}{
		{"default root", "", "/dev/sda1", true},
		{"default root pseudo", "", "tmpfs", false},
		{"custom root", "/tmp/x/dev", "/tmp/x/dev/sdb1", true},
		{"custom root ignores /dev", "/tmp/x/dev", "/dev/sdb1", false},
		{"sibling prefix", "/dev", "/devices/sda", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &VolumeProber{DevRoot: tt.devRoot}
			if got := p.isDevice(tt.source); got != tt.want {
				t.Errorf("isDevice(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}
