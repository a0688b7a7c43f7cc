// Package bitmap implements the per-work coverage bitmap: one bit per character
// offset, set-only, serialized bit-packed in LSB0 order.
package bitmap

import (
	"math/bits"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// Bitmap is a fixed-length set-only bit vector. Not safe for concurrent writes.
type Bitmap struct {
	n     int
	count int
	bits  []byte
}

// New returns an all-false bitmap of n bits.
func New(n int) *Bitmap {
	if n < 0 {
		n = 0
	}
	return &Bitmap{n: n, bits: make([]byte, ByteLen(n))}
}

// ByteLen returns the serialized size for n bits.
func ByteLen(n int) int { return (n + 7) / 8 }

// Len returns the number of bits.
func (b *Bitmap) Len() int { return b.n }

// Count returns the number of set bits.
func (b *Bitmap) Count() int { return b.count }

// Has reports whether bit i is set. Out of range is false.
func (b *Bitmap) Has(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.bits[i>>3]&(1<<(i&7)) != 0
}

// Set sets bit i and reports whether it was newly set.
func (b *Bitmap) Set(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	mask := byte(1) << (i & 7)
	if b.bits[i>>3]&mask != 0 {
		return false
	}
	b.bits[i>>3] |= mask
	b.count++
	return true
}

// SetRange sets bits [off, off+length) clipped to the bitmap and returns how
// many were newly set.
func (b *Bitmap) SetRange(off, length int) int {
	lo, hi := max(off, 0), min(off+length, b.n)
	added := 0
	for i := lo; i < hi; i++ {
		if b.Set(i) {
			added++
		}
	}
	return added
}

// Union sets every bit set in o. Lengths must match.
func (b *Bitmap) Union(o *Bitmap) (int, error) {
	if o.n != b.n {
		return 0, domain.NewMismatch("bitmap length", o.n, b.n)
	}
	added := 0
	for i, v := range o.bits {
		fresh := v &^ b.bits[i]
		if fresh != 0 {
			b.bits[i] |= fresh
			added += bits.OnesCount8(fresh)
		}
	}
	b.count += added
	return added, nil
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	c := &Bitmap{n: b.n, count: b.count, bits: make([]byte, len(b.bits))}
	copy(c.bits, b.bits)
	return c
}

// Runs calls fn for every maximal run of equal bits in order.
func (b *Bitmap) Runs(fn func(start, length int, set bool)) {
	if b.n == 0 {
		return
	}
	start, cur := 0, b.Has(0)
	for i := 1; i < b.n; i++ {
		if v := b.Has(i); v != cur {
			fn(start, i-start, cur)
			start, cur = i, v
		}
	}
	fn(start, b.n-start, cur)
}

// MarshalBinary packs the bits LSB0, ceil(n/8) bytes; padding bits are zero.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(b.bits))
	copy(out, b.bits)
	return out, nil
}

// Unmarshal decodes a packed bitmap of n bits. A size that does not fit n is a
// configuration mismatch: the work changed since the bitmap was written.
func Unmarshal(data []byte, n int) (*Bitmap, error) {
	if len(data) != ByteLen(n) {
		return nil, domain.NewMismatch("bitmap bytes", len(data), ByteLen(n))
	}
	b := &Bitmap{n: n, bits: make([]byte, len(data))}
	copy(b.bits, data)
	if rem := n & 7; rem != 0 {
		b.bits[len(b.bits)-1] &= byte(1)<<rem - 1
	}
	for _, v := range b.bits {
		b.count += bits.OnesCount8(v)
	}
	return b, nil
}
