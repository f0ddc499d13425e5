// Package nlc9 implements the NLC-9 wire format: every message is exactly
// nine unsigned 32-bit limbs packed big-endian into 36 bytes.
//
//	[0] header   4b version | 12b flags | 16b domain id
//	[1] verb id
//	[2] object id
//	[3] param A
//	[4] param B
//	[5] param C
//	[6] unix timestamp (seconds)
//	[7] correlation id
//	[8] CRC32 of limbs 0..7 (packed big-endian with a trailing zero limb)
package nlc9

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
)

const (
	// Version is packed into the top 4 header bits of every encoded frame.
	Version = 1
	// FrameSize is the exact byte length of a packed frame.
	FrameSize = 36
	// Limbs is the number of uint32 fields per frame.
	Limbs = 9
)

// Frame is one NLC-9 message in limb form.
type Frame struct {
	Header    uint32
	VerbID    uint32
	ObjectID  uint32
	ParamA    uint32
	ParamB    uint32
	ParamC    uint32
	Timestamp uint32
	CorrID    uint32
	Checksum  uint32
}

// Numbers returns the nine limbs in wire order.
func (f Frame) Numbers() [Limbs]uint32 {
	return [Limbs]uint32{
		f.Header, f.VerbID, f.ObjectID,
		f.ParamA, f.ParamB, f.ParamC,
		f.Timestamp, f.CorrID, f.Checksum,
	}
}

// FromNumbers rebuilds a frame from nine limbs in wire order.
func FromNumbers(nums [Limbs]uint32) Frame {
	return Frame{
		Header: nums[0], VerbID: nums[1], ObjectID: nums[2],
		ParamA: nums[3], ParamB: nums[4], ParamC: nums[5],
		Timestamp: nums[6], CorrID: nums[7], Checksum: nums[8],
	}
}

// Marshal packs the frame into its 36-byte big-endian wire form.
func (f Frame) Marshal() []byte {
	out := make([]byte, FrameSize)
	for i, n := range f.Numbers() {
		binary.BigEndian.PutUint32(out[i*4:], n)
	}
	return out
}

// Unmarshal parses a 36-byte buffer into a frame without verifying the
// checksum; length is the only thing checked here.
func Unmarshal(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: need %d bytes, got %d", ErrFormat, FrameSize, len(b))
	}
	var nums [Limbs]uint32
	for i := range nums {
		nums[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return FromNumbers(nums), nil
}

// Hex returns the lowercase hex rendering of the packed frame.
func (f Frame) Hex() string { return hex.EncodeToString(f.Marshal()) }

// Base64 returns the standard base64 rendering of the packed frame.
func (f Frame) Base64() string { return base64.StdEncoding.EncodeToString(f.Marshal()) }

// ComputeChecksum covers limbs 0..7. The hash runs over all nine limbs
// with the checksum slot zeroed, which is the layout every NLC-9 peer
// agrees on.
func (f Frame) ComputeChecksum() uint32 {
	zeroed := f
	zeroed.Checksum = 0
	return crc32.ChecksumIEEE(zeroed.Marshal())
}

// Seal recomputes and stores the checksum, returning the sealed frame.
func (f Frame) Seal() Frame {
	f.Checksum = f.ComputeChecksum()
	return f
}

// Verify reports whether the stored checksum matches the limb contents.
func (f Frame) Verify() bool { return f.Checksum == f.ComputeChecksum() }
