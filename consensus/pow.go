package consensus

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// PowLimitTarget is the proof-of-work ceiling target, the decoded form of POW_LIMIT_BITS.
var PowLimitTarget = BitsToTarget(POW_LIMIT_BITS)

// ParseBits parses the textual compact-target form: exactly 8 hex characters
// (4 bytes), case-insensitive, with an optional 0x prefix.
func ParseBits(s string) (uint32, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "0x")
	if len(v) != 8 {
		return 0, cerr(ERR_INVALID_COMPACT_ENCODING, fmt.Sprintf("bits must be 4 bytes, got %q", s))
	}
	raw, err := hex.DecodeString(v)
	if err != nil {
		return 0, cerr(ERR_INVALID_COMPACT_ENCODING, fmt.Sprintf("bits not hex: %q", s))
	}
	return uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]), nil
}

// BitsToTarget decodes the compact target representation: the top byte is a
// base-256 exponent, the low three bytes the mantissa. Both shift directions
// are exact; there is no rounding.
func BitsToTarget(bits uint32) *big.Int {
	exponent := uint(bits >> 24)
	mantissa := new(big.Int).SetUint64(uint64(bits & 0x00ffffff))
	switch {
	case exponent == 0:
		return mantissa
	case exponent <= 3:
		return mantissa.Rsh(mantissa, 8*(3-exponent))
	default:
		return mantissa.Lsh(mantissa, 8*(exponent-3))
	}
}

// TargetToBits encodes target back into canonical compact form. The mantissa
// is normalized below 0x800000 so the sign bit of the legacy encoding stays
// clear. Round-tripping through BitsToTarget loses at most the precision the
// 3-byte mantissa cannot carry.
func TargetToBits(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}
	exponent := uint32((target.BitLen() + 7) / 8)
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(target.Uint64()) << (8 * (3 - exponent))
	} else {
		shifted := new(big.Int).Rsh(target, 8*uint(exponent-3))
		mantissa = uint32(shifted.Uint64())
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return exponent<<24 | mantissa
}

// TargetToWork returns floor(2^256 / (target+1)), the conventional estimate of
// expected hashes per block. This is an ordering aid, not a verifiable
// chainwork commitment; callers must not treat accumulated work as
// security-relevant.
func TargetToWork(target *big.Int) *big.Int {
	if target.Sign() == 0 {
		return new(big.Int)
	}
	divisor := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Quo(twoTo256, divisor)
}
