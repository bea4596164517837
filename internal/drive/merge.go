package drive

import "dcat-go/internal/model"

// Merge folds an incoming observation into an existing record and returns
// the result; neither argument is modified.
//
// Fields that follow the volume around (mount point, format, free space,
// label, notes, update time) take the incoming value when it is set. Fields
// that describe the hardware or the record itself (ID, creation time,
// type, serials, model, total size) keep the existing value and are only
// filled when empty. Machine names are unioned.
func Merge(existing, incoming *model.Drive) *model.Drive {
	if existing == nil && incoming == nil {
		return nil
	}
	if existing == nil {
		return incoming.Clone()
	}
	merged := existing.Clone()
	if incoming == nil {
		return merged
	}

	for _, m := range incoming.MachineNames {
		merged.AddMachine(m)
	}

	merged.DriveLetter = firstNonBlank(incoming.DriveLetter, existing.DriveLetter)
	merged.DriveFormat = firstNonBlank(incoming.DriveFormat, existing.DriveFormat)
	merged.VolumeLabel = firstNonBlank(incoming.VolumeLabel, existing.VolumeLabel)
	merged.Notes = firstNonBlank(incoming.Notes, existing.Notes)
	if incoming.TotalFreeSpace.Valid {
		merged.TotalFreeSpace = incoming.TotalFreeSpace
	}
	if !incoming.UpdatedAt.IsZero() {
		merged.UpdatedAt = incoming.UpdatedAt
	}

	if merged.ID == 0 {
		merged.ID = incoming.ID
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = incoming.CreatedAt
	}
	merged.DriveType = firstNonBlank(existing.DriveType, incoming.DriveType)
	merged.VolumeSerialNumber = firstNonBlank(existing.VolumeSerialNumber, incoming.VolumeSerialNumber)
	merged.HardwareSerialNumber = firstNonBlank(existing.HardwareSerialNumber, incoming.HardwareSerialNumber)
	merged.Model = firstNonBlank(existing.Model, incoming.Model)
	if merged.TotalSize <= 0 {
		merged.TotalSize = incoming.TotalSize
	}

	return merged
}

// firstNonBlank returns first unless it is blank, then fallback.
func firstNonBlank(first, fallback string) string {
	if blank(first) {
		return fallback
	}
	return first
}
