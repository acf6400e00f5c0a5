package permission

import (
	"encoding/binary"
	"errors"
)

// MaskSize is the encoded length of a [Mask].
const MaskSize = 8

// EncodeMask returns the big-endian encoding of m.
func EncodeMask(m Mask) []byte {
	b := make([]byte, MaskSize)
	binary.BigEndian.PutUint64(b, uint64(m))
	return b
}

// AppendMask appends the big-endian encoding of m to dst.
func AppendMask(dst []byte, m Mask) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(m))
}

// DecodeMask decodes an 8-byte big-endian mask.
//
// DecodeMask returns an error when data is not exactly [MaskSize] bytes long.
func DecodeMask(data []byte) (Mask, error) {
	if len(data) != MaskSize {
		return 0, errors.New("invalid mask size")
	}
	return Mask(binary.BigEndian.Uint64(data)), nil
}
