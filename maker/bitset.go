package maker

import "math/bits"

// bitset is a fixed-capacity set of variable ids used by the flow pass.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) has(i int) bool {
	return i/64 < len(b) && b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b bitset) clone() bitset {
	return append(bitset(nil), b...)
}

// intersect narrows b to the bits also in o, reporting whether b changed.
func (b bitset) intersect(o bitset) bool {
	changed := false
	for i := range b {
		v := b[i] & o[i]
		if v != b[i] {
			b[i] = v
			changed = true
		}
	}
	return changed
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}
