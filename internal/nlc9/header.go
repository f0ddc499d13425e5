package nlc9

import (
	"fmt"
	"strings"
)

// Flag is a bit within the 12-bit header flag field.
type Flag uint16

const (
	FlagAck Flag = 1 << iota
	FlagStream
	FlagUrgent
	FlagEncrypted
	FlagSigned

	flagMask = (1 << 12) - 1
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagAck, "ACK"},
	{FlagStream, "STREAM"},
	{FlagUrgent, "URGENT"},
	{FlagEncrypted, "ENCRYPTED"},
	{FlagSigned, "SIGNED"},
}

// ParseFlags maps symbolic flag names onto the flag bitmask.
func ParseFlags(names []string) (Flag, error) {
	var out Flag
	for _, raw := range names {
		name := strings.ToUpper(strings.TrimSpace(raw))
		matched := false
		for _, fn := range flagNames {
			if fn.name == name {
				out |= fn.flag
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("%w: unknown flag %q", ErrSchema, raw)
		}
	}
	return out, nil
}

// Names expands the bitmask back into symbolic flag names, in bit order.
func (f Flag) Names() []string {
	out := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// PackHeader lays out version, flags, and domain id in the header limb.
func PackHeader(version uint8, flags Flag, domain uint16) uint32 {
	return uint32(version&0xF)<<28 | uint32(flags&flagMask)<<16 | uint32(domain)
}

// UnpackHeader splits a header limb into its three fields.
func UnpackHeader(header uint32) (version uint8, flags Flag, domain uint16) {
	version = uint8(header >> 28 & 0xF)
	flags = Flag(header >> 16 & flagMask)
	domain = uint16(header)
	return
}
