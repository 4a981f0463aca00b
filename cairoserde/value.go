// Package cairoserde converts block and chain-state records into the felt
// (field element) argument encoding consumed by the Cairo proving program.
//
// Input is an explicitly tagged value tree: the upstream formatter knows the
// semantic type of every field, so the tag is decided once at construction
// time. The shape-sniffing string dispatch of the legacy JSON pipeline only
// survives in ParseJSON as a compatibility shim for untyped argument files.
package cairoserde

import "github.com/holiman/uint256"

// Value is one node of the tagged input tree. Concrete variants cover the
// fixed sub-schema emitted by the block/chain-state formatter; anything else
// is rejected at serialization time.
type Value interface {
	isValue()
}

// Bool becomes a 0/1 scalar felt.
type Bool bool

// Uint is a non-negative integer scalar; it always fits a felt.
type Uint uint64

// BigUint is a scalar outside uint64 range. It must stay below 2^252.
type BigUint struct {
	V *uint256.Int
}

// U256Dec is a decimal-digit string encoding an unsigned 256-bit integer,
// serialized as a (lo, hi) pair of 128-bit limbs.
type U256Dec string

// DigestHex is a 64-character hex string holding a 32-byte hash, serialized
// as eight big-endian u32 words over the reversed byte stream.
type DigestHex string

// BytesHex is a 0x-prefixed hex string holding an arbitrary byte array,
// serialized as 31-byte limbs plus the remainder and its true length.
type BytesHex string

// Seq is an ordered sequence, serialized with a leading length felt.
type Seq []Value

// Rec is a keyed record: only the field values are serialized, positionally,
// in declaration order. Ordering is semantically significant.
type Rec []Field

// Field is one record entry. Inline fields carry pre-encoded argument data
// (Raw) that is spliced into the parent's positional layout verbatim instead
// of being wrapped; the producer decides this once, at construction.
type Field struct {
	Name   string
	Value  Value
	Inline bool
}

// None encodes the absent arm of an option, a bare scalar 1 by the receiving
// circuit's convention.
type None struct{}

// Raw is pre-flattened argument data (for example a previous proof blob)
// spliced verbatim: felts stay felts, nested lists stay nested.
type Raw []Arg

func (Bool) isValue()      {}
func (Uint) isValue()      {}
func (BigUint) isValue()   {}
func (U256Dec) isValue()   {}
func (DigestHex) isValue() {}
func (BytesHex) isValue()  {}
func (Seq) isValue()       {}
func (Rec) isValue()       {}
func (None) isValue()      {}
func (Raw) isValue()       {}
