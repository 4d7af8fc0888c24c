package astilibav

import "math"

// DisplayMode represents the re-timing strategy relating the input field
// structure and rate to the output format's requirements
type DisplayMode int

// Display modes
const (
	DisplayModeInvalid DisplayMode = iota
	DisplayModeSimple
	DisplayModeDeinterlace
	DisplayModeDeinterlaceBob
	DisplayModeDeinterlaceBobReinterlace
	DisplayModeInterlace
	DisplayModeDuplicate
	DisplayModeHalf
)

// String implements the fmt.Stringer interface
func (m DisplayMode) String() string {
	switch m {
	case DisplayModeSimple:
		return "simple"
	case DisplayModeDeinterlace:
		return "deinterlace"
	case DisplayModeDeinterlaceBob:
		return "deinterlace bob"
	case DisplayModeDeinterlaceBobReinterlace:
		return "deinterlace bob reinterlace"
	case DisplayModeInterlace:
		return "interlace"
	case DisplayModeDuplicate:
		return "duplicate"
	case DisplayModeHalf:
		return "half"
	default:
		return "invalid"
	}
}

// displayModeFor classifies the combination of input field mode/rate and
// output field mode/rate into a display mode
func displayModeFor(inMode FieldMode, inFPS float64, outMode FieldMode, outFPS float64) DisplayMode {
	const epsilon = 2.0

	if inFPS < 20.0 || inFPS > 80.0 {
		if outMode == FieldModeProgressive && inMode != FieldModeProgressive {
			if inFPS < 35.0 {
				return DisplayModeDeinterlace
			}
			return DisplayModeDeinterlaceBob
		}
	}

	if math.Abs(inFPS-outFPS) < epsilon {
		if inMode != FieldModeProgressive && outMode == FieldModeProgressive {
			return DisplayModeDeinterlace
		}
		// Interlacing progressive content is handled at render time
		return DisplayModeSimple
	} else if math.Abs(inFPS/2.0-outFPS) < epsilon {
		if inMode != FieldModeProgressive {
			return DisplayModeInvalid
		}
		if outMode != FieldModeProgressive {
			return DisplayModeInterlace
		}
		return DisplayModeHalf
	} else if math.Abs(inFPS-outFPS/2.0) < epsilon {
		if outMode != FieldModeProgressive {
			return DisplayModeInvalid
		}
		if inMode != FieldModeProgressive {
			return DisplayModeDeinterlaceBob
		}
		return DisplayModeDuplicate
	}

	return DisplayModeInvalid
}
