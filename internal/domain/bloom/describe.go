package bloom

import (
	"encoding/hex"
	"fmt"
)

func describe(p Params) string {
	return fmt.Sprintf("v=%d h=%d family=%s k=%d", p.VectorBits, p.HashCount, p.Family, p.WindowLength)
}

func hexDigest(d [16]byte) string { return hex.EncodeToString(d[:]) }
