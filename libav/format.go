package astilibav

import (
	"strings"

	"github.com/asticode/go-astiav"
)

// FieldMode represents the field structure of video content
type FieldMode int

// Field modes
const (
	FieldModeProgressive FieldMode = iota
	FieldModeUpper
	FieldModeLower
)

// String implements the fmt.Stringer interface
func (m FieldMode) String() string {
	switch m {
	case FieldModeLower:
		return "lower"
	case FieldModeUpper:
		return "upper"
	default:
		return "progressive"
	}
}

// Format describes a target output timing format
type Format struct {
	AudioCadence []int
	FieldMode    FieldMode
	FrameRate    astiav.Rational
	Height       int
	Name         string
	SampleRate   int
	Width        int
}

// FormatByName returns the preset format with the provided name
func FormatByName(name string) (f Format, ok bool) {
	for _, v := range []Format{FormatPAL, FormatNTSC, Format720p50, Format720p5994,
		Format1080i50, Format1080i5994, Format1080p25, Format1080p2997,
		Format1080p50, Format1080p5994} {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return
}

// Preset formats
var (
	FormatPAL = Format{
		AudioCadence: AudioCadence(astiav.NewRational(25, 1), 48000),
		FieldMode:    FieldModeUpper,
		FrameRate:    astiav.NewRational(25, 1),
		Height:       576,
		Name:         "PAL",
		SampleRate:   48000,
		Width:        720,
	}
	FormatNTSC = Format{
		AudioCadence: AudioCadence(astiav.NewRational(30000, 1001), 48000),
		FieldMode:    FieldModeLower,
		FrameRate:    astiav.NewRational(30000, 1001),
		Height:       486,
		Name:         "NTSC",
		SampleRate:   48000,
		Width:        720,
	}
	Format720p50 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(50, 1), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(50, 1),
		Height:       720,
		Name:         "720p50",
		SampleRate:   48000,
		Width:        1280,
	}
	Format720p5994 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(60000, 1001), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(60000, 1001),
		Height:       720,
		Name:         "720p5994",
		SampleRate:   48000,
		Width:        1280,
	}
	Format1080i50 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(25, 1), 48000),
		FieldMode:    FieldModeUpper,
		FrameRate:    astiav.NewRational(25, 1),
		Height:       1080,
		Name:         "1080i50",
		SampleRate:   48000,
		Width:        1920,
	}
	Format1080i5994 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(30000, 1001), 48000),
		FieldMode:    FieldModeUpper,
		FrameRate:    astiav.NewRational(30000, 1001),
		Height:       1080,
		Name:         "1080i5994",
		SampleRate:   48000,
		Width:        1920,
	}
	Format1080p25 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(25, 1), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(25, 1),
		Height:       1080,
		Name:         "1080p25",
		SampleRate:   48000,
		Width:        1920,
	}
	Format1080p2997 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(30000, 1001), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(30000, 1001),
		Height:       1080,
		Name:         "1080p2997",
		SampleRate:   48000,
		Width:        1920,
	}
	Format1080p50 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(50, 1), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(50, 1),
		Height:       1080,
		Name:         "1080p50",
		SampleRate:   48000,
		Width:        1920,
	}
	Format1080p5994 = Format{
		AudioCadence: AudioCadence(astiav.NewRational(60000, 1001), 48000),
		FieldMode:    FieldModeProgressive,
		FrameRate:    astiav.NewRational(60000, 1001),
		Height:       1080,
		Name:         "1080p5994",
		SampleRate:   48000,
		Width:        1920,
	}
)
