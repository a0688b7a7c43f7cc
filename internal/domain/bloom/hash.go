package bloom

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

func hashPair(f Family, b []byte) (h1, h2 uint64) {
	if f == FamilySHA256 {
		sum := sha256.Sum256(b)
		h1 = binary.BigEndian.Uint64(sum[0:8])
		h2 = binary.BigEndian.Uint64(sum[8:16])
		if h2 == 0 {
			h2 = 1
		}
		return h1, h2
	}
	h1 = xxhash.Sum64(b)
	return h1, splitmix64(h1) | 1
}

// splitmix64 is the SplitMix64 finalizer; a bijection on uint64.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func setBitsLSB0(bitset []byte, vBits uint64, k uint8, h1, h2 uint64) {
	for i := uint64(0); i < uint64(k); i++ {
		j := (h1 + i*h2) % vBits
		bitset[j>>3] |= 1 << (j & 7)
	}
}

func testBitsLSB0(bitset []byte, vBits uint64, k uint8, h1, h2 uint64) bool {
	for i := uint64(0); i < uint64(k); i++ {
		j := (h1 + i*h2) % vBits
		if bitset[j>>3]&(1<<(j&7)) == 0 {
			return false
		}
	}
	return true
}
