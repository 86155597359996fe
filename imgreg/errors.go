package imgreg

import "errors"

// Sentinel errors for the closed error-kind enumeration (spec §7). Callers
// should use errors.Is against these, since most are wrapped with
// fmt.Errorf("...: %w", err) at call boundaries.
var (
	// ErrIO covers a missing, unreadable, or unwritable file.
	ErrIO = errors.New("imgreg: io error")
	// ErrUnsupportedFormat covers an unknown file extension or element dtype.
	ErrUnsupportedFormat = errors.New("imgreg: unsupported format")
	// ErrShapeMismatch covers inputs that must share shape but do not.
	ErrShapeMismatch = errors.New("imgreg: shape mismatch")
	// ErrDegenerateStats covers statistics that cannot be computed (fully
	// masked region, constant image).
	ErrDegenerateStats = errors.New("imgreg: degenerate statistics")
	// ErrInsufficientEvidence covers too few surviving alignment records to fit.
	ErrInsufficientEvidence = errors.New("imgreg: insufficient evidence")
	// ErrDuplicatePoint covers a control-point mutation that would create a
	// duplicate target coordinate.
	ErrDuplicatePoint = errors.New("imgreg: duplicate control point")
	// ErrOutOfDomain covers a transform inverse undefined at a requested
	// point with extrapolation disabled.
	ErrOutOfDomain = errors.New("imgreg: point out of transform domain")
	// ErrCompositeOutOfBounds covers assembly producing pixel coordinates
	// outside the allocated output buffers — indicates a broken transform.
	ErrCompositeOutOfBounds = errors.New("imgreg: composite coordinates out of bounds")
	// ErrInvalidTransformLiteral covers a parsed transform containing
	// sentinel/NaN/Inf values.
	ErrInvalidTransformLiteral = errors.New("imgreg: invalid transform literal")
)
