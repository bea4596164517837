package model

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Drive is a storage volume the catalog has seen attached to one or more
// machines. A drive keeps its identity across remounts: on unix DriveLetter
// holds the current mount point and may change between scans.
type Drive struct {
	ID                   int64
	DriveType            string        // "Fixed", "Removable", "Network", "Ram", "CDRom", "Unknown"
	DriveLetter          string        // Mount point (or "C:" style letter)
	TotalSize            int64         // Bytes; never overwritten once known
	TotalFreeSpace       sql.NullInt64 // Bytes available at last observation
	DriveFormat          string        // Filesystem type, e.g. "ext4", "NTFS"
	VolumeLabel          string
	VolumeSerialNumber   string // Filesystem UUID; unique when present
	HardwareSerialNumber string // Serial of the physical device
	Model                string // Model of the physical device
	Notes                string
	MachineNames         []string // Sorted; grows, never shrinks
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasMachine reports whether the drive has been attached to machine.
func (d *Drive) HasMachine(machine string) bool {
	i := sort.SearchStrings(d.MachineNames, machine)
	return i < len(d.MachineNames) && d.MachineNames[i] == machine
}

// AddMachine records that the drive was attached to machine.
// Blank names are ignored.
func (d *Drive) AddMachine(machine string) {
	if machine == "" || d.HasMachine(machine) {
		return
	}
	d.MachineNames = append(d.MachineNames, machine)
	sort.Strings(d.MachineNames)
}

// Clone returns a deep copy.
func (d *Drive) Clone() *Drive {
	c := *d
	c.MachineNames = append([]string(nil), d.MachineNames...)
	return &c
}

func (d *Drive) String() string {
	label := d.VolumeLabel
	if label == "" {
		label = "-"
	}
	return fmt.Sprintf("#%d %s %s (%s, %s)", d.ID, d.DriveLetter, label, d.DriveFormat, d.VolumeSerialNumber)
}
