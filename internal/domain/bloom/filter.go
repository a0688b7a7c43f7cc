package bloom

import (
	"encoding/binary"
	"math"

	"github.com/kailas-cloud/monkeys/internal/domain"
)

// Filter is an in-memory Bloom filter. Add is not safe for concurrent use;
// once building is done Test may be called from any number of goroutines.
type Filter struct {
	params   Params
	digest   [16]byte
	inserted uint64
	bitset   []byte
}

// New allocates an empty filter.
func New(p Params) (*Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Filter{params: p, bitset: make([]byte, BitsetBytes(p.VectorBits))}, nil
}

// Build creates a filter holding every WindowLength window of every work.
// Windows never span two works.
func Build(works []domain.Work, digest [16]byte, p Params) (*Filter, error) {
	f, err := New(p)
	if err != nil {
		return nil, err
	}
	f.digest = digest
	k := int(p.WindowLength)
	for _, w := range works {
		text := []byte(w.Text())
		for i := 0; i+k <= len(text); i++ {
			f.Add(text[i : i+k])
		}
	}
	return f, nil
}

// Add inserts window.
func (f *Filter) Add(window []byte) {
	h1, h2 := hashPair(f.params.Family, window)
	setBitsLSB0(f.bitset, f.params.VectorBits, f.params.HashCount, h1, h2)
	f.inserted++
}

// Test reports whether window may be present. False is definitive.
func (f *Filter) Test(window []byte) bool {
	h1, h2 := hashPair(f.params.Family, window)
	return testBitsLSB0(f.bitset, f.params.VectorBits, f.params.HashCount, h1, h2)
}

// Params returns the filter parameters.
func (f *Filter) Params() Params { return f.params }

// Digest returns the corpus digest the filter was built from.
func (f *Filter) Digest() [16]byte { return f.digest }

// Inserted returns the number of Add calls, duplicates included.
func (f *Filter) Inserted() uint64 { return f.inserted }

// EstimatedFPR is (1 - e^(-Hn/V))^H for the current insert count.
func (f *Filter) EstimatedFPR() float64 {
	return FalsePositiveRate(f.params.VectorBits, f.params.HashCount, f.inserted)
}

// Matches checks the filter against a persisted key.
func (f *Filter) Matches(k Key) error {
	if f.params != k.Params {
		return domain.NewMismatch("filter parameters", describe(f.params), describe(k.Params))
	}
	if f.digest != k.Digest {
		return domain.NewMismatch("filter corpus digest", hexDigest(f.digest), hexDigest(k.Digest))
	}
	return nil
}

// MarshalBinary encodes the filter in format V1.
func (f *Filter) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderBytesV1+len(f.bitset))
	copy(buf[0:4], MagicV1)
	buf[4] = VersionV1
	buf[5] = uint8(f.params.Family)
	buf[6] = f.params.HashCount
	buf[7] = f.params.WindowLength
	binary.BigEndian.PutUint64(buf[8:16], f.params.VectorBits)
	binary.BigEndian.PutUint64(buf[16:24], f.inserted)
	copy(buf[24:40], f.digest[:])
	copy(buf[HeaderBytesV1:], f.bitset)
	return buf, nil
}

// UnmarshalBinary decodes a format V1 filter, replacing f's contents.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderBytesV1 {
		return ErrBadRegionSize
	}
	if string(data[0:4]) != MagicV1 {
		return ErrBadMagic
	}
	if data[4] != VersionV1 {
		return ErrBadVersion
	}
	p := Params{
		Family:       Family(data[5]),
		HashCount:    data[6],
		WindowLength: data[7],
		VectorBits:   binary.BigEndian.Uint64(data[8:16]),
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if uint64(len(data)-HeaderBytesV1) != BitsetBytes(p.VectorBits) {
		return ErrBadRegionSize
	}

	f.params = p
	f.inserted = binary.BigEndian.Uint64(data[16:24])
	copy(f.digest[:], data[24:40])
	f.bitset = make([]byte, len(data)-HeaderBytesV1)
	copy(f.bitset, data[HeaderBytesV1:])
	return nil
}

// BitsetBytes returns ceil(vBits/8).
func BitsetBytes(vBits uint64) uint64 {
	return (vBits + 7) / 8
}

// FalsePositiveRate is the textbook estimate (1 - e^(-Hn/V))^H.
func FalsePositiveRate(vBits uint64, hashes uint8, n uint64) float64 {
	if vBits == 0 {
		return 1
	}
	return math.Pow(1-math.Exp(-float64(hashes)*float64(n)/float64(vBits)), float64(hashes))
}

// OptimalParams sizes a filter for n windows at the target false positive rate.
func OptimalParams(n uint64, fpr float64) (vBits uint64, hashes uint8) {
	if n == 0 || fpr <= 0 || fpr >= 1 {
		return 8, 1
	}
	m := math.Ceil(-float64(n) * math.Log(fpr) / (math.Ln2 * math.Ln2))
	h := math.Round(m / float64(n) * math.Ln2)
	h = math.Max(1, math.Min(h, MaxHashCount))
	return uint64(m), uint8(h)
}
