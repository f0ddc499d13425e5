package nlc9

import "errors"

// Codec error taxonomy. Callers match with errors.Is; none of these are
// fatal beyond the individual encode or decode call that produced them.
var (
	// ErrFormat reports input that is not a 36-byte frame.
	ErrFormat = errors.New("nlc9: malformed frame")
	// ErrIntegrity reports a checksum mismatch; the frame must be discarded.
	ErrIntegrity = errors.New("nlc9: checksum mismatch")
	// ErrSchema reports an undeclared parameter or a declared-bounds violation.
	ErrSchema = errors.New("nlc9: schema violation")
	// ErrRange reports a scaled value that does not fit an unsigned 32-bit limb.
	ErrRange = errors.New("nlc9: value out of range")
)
