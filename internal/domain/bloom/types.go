package bloom

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderBytesV1 is the fixed header size.
	HeaderBytesV1 = 48

	MagicV1   = "MKB1"
	VersionV1 uint8 = 1

	// MaxHashCount bounds H; beyond this the filter only gets slower.
	MaxHashCount = 32
)

var (
	ErrBadMagic       = errors.New("bloom: header magic invalid")
	ErrBadVersion     = errors.New("bloom: header version invalid")
	ErrBadFamily      = errors.New("bloom: unknown hash family")
	ErrBadHashCount   = errors.New("bloom: hash count invalid")
	ErrBadVectorBits  = errors.New("bloom: vector bits invalid")
	ErrBadWindow      = errors.New("bloom: window length invalid")
	ErrBadRegionSize  = errors.New("bloom: buffer size does not match header")
	ErrParamsMismatch = errors.New("bloom: parameters mismatch")
)

// Family names the hash family used to derive bit positions.
type Family uint8

// Supported hash families.
const (
	FamilyXXH64  Family = 1
	FamilySHA256 Family = 2
)

func (f Family) String() string {
	switch f {
	case FamilyXXH64:
		return "xxh64"
	case FamilySHA256:
		return "sha256"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// ParseFamily maps a configuration name to a Family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xxh64":
		return FamilyXXH64, nil
	case "sha256":
		return FamilySHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadFamily, s)
	}
}

// Params identifies a filter configuration.
type Params struct {
	VectorBits   uint64
	HashCount    uint8
	Family       Family
	WindowLength uint8
}

// Validate checks the parameters for a usable filter.
func (p Params) Validate() error {
	if p.VectorBits == 0 {
		return ErrBadVectorBits
	}
	if p.HashCount == 0 || p.HashCount > MaxHashCount {
		return ErrBadHashCount
	}
	if p.Family != FamilyXXH64 && p.Family != FamilySHA256 {
		return ErrBadFamily
	}
	if p.WindowLength == 0 {
		return ErrBadWindow
	}
	return nil
}

// Key is the persisted identity of a filter: where it lives and what it must contain.
type Key struct {
	Prefix string
	Params Params
	Digest [16]byte
}

// Name is the deterministic blob name for the key. The digest is checked from
// the header rather than encoded in the name.
func (k Key) Name() string {
	return fmt.Sprintf("%s_%d_%d_%s_%d.bloom",
		k.Prefix, k.Params.VectorBits, k.Params.HashCount, k.Params.Family, k.Params.WindowLength)
}
