// Package drive decides which catalogued drive an observed volume is, and
// how an observation is folded into the stored record.
package drive

import (
	"strings"

	"dcat-go/internal/model"
)

// Rule names the cascade step that matched a drive.
type Rule int

const (
	RuleNone Rule = iota
	RuleID
	RuleSerial
	RuleLetterLabelHardware
	RuleLetterHardware
	RuleLetterLabel
	RuleLabelHardware
)

func (r Rule) String() string {
	switch r {
	case RuleID:
		return "id"
	case RuleSerial:
		return "volume-serial"
	case RuleLetterLabelHardware:
		return "letter+label+hardware-serial"
	case RuleLetterHardware:
		return "letter+hardware-serial"
	case RuleLetterLabel:
		return "letter+label"
	case RuleLabelHardware:
		return "label+hardware-serial"
	default:
		return "none"
	}
}

// compositeRules are tried in order once candidates share format, size and
// type.
var compositeRules = []struct {
	rule  Rule
	match func(a, b *model.Drive) bool
}{
	{RuleLetterLabelHardware, func(a, b *model.Drive) bool {
		return a.DriveLetter == b.DriveLetter && a.VolumeLabel == b.VolumeLabel && a.HardwareSerialNumber == b.HardwareSerialNumber
	}},
	{RuleLetterHardware, func(a, b *model.Drive) bool {
		return a.DriveLetter == b.DriveLetter && a.HardwareSerialNumber == b.HardwareSerialNumber
	}},
	{RuleLetterLabel, func(a, b *model.Drive) bool {
		return a.DriveLetter == b.DriveLetter && a.VolumeLabel == b.VolumeLabel
	}},
	{RuleLabelHardware, func(a, b *model.Drive) bool {
		return a.VolumeLabel == b.VolumeLabel && a.HardwareSerialNumber == b.HardwareSerialNumber
	}},
}

// Match resolves an observation against persisted drives: by ID when the
// observation carries one, then by volume serial, then by MatchComposite.
// A nil result means the observation is a new drive.
func Match(observed *model.Drive, persisted []*model.Drive) (*model.Drive, Rule) {
	if observed == nil {
		return nil, RuleNone
	}
	if observed.ID != 0 {
		for _, d := range persisted {
			if d.ID == observed.ID {
				return d, RuleID
			}
		}
	}
	if serial := observed.VolumeSerialNumber; serial != "" {
		for _, d := range persisted {
			if d.VolumeSerialNumber == serial {
				return d, RuleSerial
			}
		}
	}
	return MatchComposite(observed, persisted)
}

// MatchComposite narrows candidates to those sharing format, total size
// and drive type, then applies the letter/label/hardware rules in order.
// The first candidate satisfying the earliest rule wins. Candidates whose
// serial differs from a serial the observation carries never match.
func MatchComposite(observed *model.Drive, candidates []*model.Drive) (*model.Drive, Rule) {
	if observed == nil {
		return nil, RuleNone
	}

	var narrowed []*model.Drive
	for _, d := range candidates {
		if SameGeometry(observed, d) && !conflictingSerials(observed, d) {
			narrowed = append(narrowed, d)
		}
	}

	for _, r := range compositeRules {
		for _, d := range narrowed {
			if r.match(observed, d) {
				return d, r.rule
			}
		}
	}
	return nil, RuleNone
}

// SameGeometry reports whether two drives share format, size and type.
func SameGeometry(a, b *model.Drive) bool {
	return a.DriveFormat == b.DriveFormat && a.TotalSize == b.TotalSize && a.DriveType == b.DriveType
}

// SameVolume reports whether two observations carry the same identity: the
// same volume serial, or with no serial on either side, the same composite
// fields.
func SameVolume(a, b *model.Drive) bool {
	if a.VolumeSerialNumber != "" || b.VolumeSerialNumber != "" {
		return a.VolumeSerialNumber == b.VolumeSerialNumber
	}
	return SameGeometry(a, b) &&
		a.DriveLetter == b.DriveLetter &&
		a.VolumeLabel == b.VolumeLabel &&
		a.HardwareSerialNumber == b.HardwareSerialNumber
}

func conflictingSerials(a, b *model.Drive) bool {
	return a.VolumeSerialNumber != "" && b.VolumeSerialNumber != "" && a.VolumeSerialNumber != b.VolumeSerialNumber
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
