package volume

// WrapMode selects the policy applied when a requested voxel coordinate
// lies outside the volume's valid region.
type WrapMode int

const (
	// Validate fails the call with OutOfRange if the position is outside
	// the valid region.
	Validate WrapMode = iota
	// Clamp snaps the position to the nearest in-range coordinate before
	// reading.
	Clamp
	// Border returns a caller-supplied value instead of reading.
	Border
	// AssumeValid skips the bounds check entirely.
	AssumeValid
)

func (m WrapMode) String() string {
	switch m {
	case Validate:
		return "Validate"
	case Clamp:
		return "Clamp"
	case Border:
		return "Border"
	case AssumeValid:
		return "AssumeValid"
	default:
		return "WrapMode(?)"
	}
}
