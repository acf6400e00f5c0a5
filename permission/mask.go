package permission

import "math/bits"

// Mask is a 64-bit permission bitmask. Bit i set means flag i is present.
type Mask uint64

// HasBit reports whether the given bit is set.
func (m Mask) HasBit(bit int) bool {
	if bit < 0 || bit >= MaxFlags {
		return false
	}
	return m&(1<<bit) != 0
}

// Has reports whether m holds every bit of required. An empty requirement is
// always satisfied.
func (m Mask) Has(required Mask) bool {
	return m&required == required
}

// Missing returns the bits of required that m does not hold.
func (m Mask) Missing(required Mask) Mask {
	return required &^ m
}

// Set sets the given bit in the mask.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= MaxFlags {
		return
	}
	*m |= 1 << bit
}

// Clear clears the given bit in the mask.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= MaxFlags {
		return
	}
	*m &^= 1 << bit
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

func (m Mask) Raw() uint64 {
	return uint64(m)
}

// Combine returns the bitwise OR of all masks. It is used to fold the flags an
// operation declares into a single requirement.
func Combine(masks ...Mask) Mask {
	var out Mask
	for _, m := range masks {
		out |= m
	}
	return out
}

// Effective returns granted minus denied.
func Effective(granted, denied Mask) Mask {
	return granted &^ denied
}
