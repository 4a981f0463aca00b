package cairoserde

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"
)

// feltBits bounds every scalar felt: values must be < 2^252.
const feltBits = 252

const zeroDigest64 = "0000000000000000000000000000000000000000000000000000000000000000"

// Encoded is the intermediate representation mirroring the proving program's
// data layout. Exactly one variant exists per concrete input value; the
// mapping is total over the supported shapes and order-sensitive everywhere.
type Encoded interface {
	flattenInto(out *[]Arg)
}

// Scalar is a single felt.
type Scalar struct {
	V *uint256.Int
}

// Digest is a 32-byte hash as eight big-endian u32 words, word order taken
// from the reversed byte stream split into 4-byte groups.
type Digest struct {
	Words [8]uint32
}

// WideInt is an unsigned 256-bit integer as (lo, hi) 128-bit limbs.
type WideInt struct {
	Lo, Hi *uint256.Int
}

// ByteChunks is a byte array as 31-byte big-endian limbs: the full chunks in
// order, then the remainder as the big-endian integer of the tail bytes and
// its true byte length.
type ByteChunks struct {
	Chunks       []*uint256.Int
	Remainder    *uint256.Int
	RemainderLen uint32
}

// Sequence is a length-prefixed ordered sequence of encoded elements.
type Sequence struct {
	Elems []Encoded
}

// Tuple is a positional grouping without a length prefix (record fields).
type Tuple struct {
	Elems []Encoded
}

// Spliced carries pre-flattened argument data emitted verbatim.
type Spliced struct {
	Items []Arg
}

// Serialize maps a tagged value tree onto the intermediate representation.
// Errors are fatal for the value being converted: no partial output is
// produced, and nothing is retried or defaulted.
func Serialize(v Value) (Encoded, error) {
	switch val := v.(type) {
	case Bool:
		if val {
			return Scalar{V: uint256.NewInt(1)}, nil
		}
		return Scalar{V: uint256.NewInt(0)}, nil

	case Uint:
		return Scalar{V: uint256.NewInt(uint64(val))}, nil

	case BigUint:
		if val.V == nil || val.V.BitLen() > feltBits {
			return nil, serr(ERR_OUT_OF_RANGE_SCALAR, "scalar exceeds 2^%d", feltBits)
		}
		return Scalar{V: val.V}, nil

	case U256Dec:
		return serializeU256Dec(string(val))

	case DigestHex:
		return serializeDigest(string(val))

	case BytesHex:
		return serializeByteArray(string(val))

	case Seq:
		elems := make([]Encoded, 0, len(val)+1)
		elems = append(elems, Scalar{V: uint256.NewInt(uint64(len(val)))})
		for _, item := range val {
			enc, err := Serialize(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, enc)
		}
		return Sequence{Elems: elems}, nil

	case Rec:
		elems := make([]Encoded, 0, len(val))
		for _, field := range val {
			if field.Inline {
				raw, ok := field.Value.(Raw)
				if !ok {
					return nil, serr(ERR_UNSUPPORTED_VALUE_TYPE,
						"inline field %q must carry raw argument data", field.Name)
				}
				elems = append(elems, Spliced{Items: raw})
				continue
			}
			enc, err := Serialize(field.Value)
			if err != nil {
				return nil, err
			}
			elems = append(elems, enc)
		}
		return Tuple{Elems: elems}, nil

	case None:
		// Option::None variant tag.
		return Scalar{V: uint256.NewInt(1)}, nil

	case Raw:
		return Spliced{Items: val}, nil

	default:
		return nil, serr(ERR_UNSUPPORTED_VALUE_TYPE, "no mapping for %T", v)
	}
}

func serializeU256Dec(s string) (Encoded, error) {
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, serr(ERR_OUT_OF_RANGE_SCALAR, "u256 decimal %q: %v", s, err)
	}
	lo := &uint256.Int{n[0], n[1], 0, 0}
	hi := &uint256.Int{n[2], n[3], 0, 0}
	return WideInt{Lo: lo, Hi: hi}, nil
}

func serializeDigest(s string) (Encoded, error) {
	if s == zeroDigest64 {
		// Zero hash fast path; numerically identical to the generic route.
		return Digest{}, nil
	}
	if len(s) != 64 {
		return nil, serr(ERR_UNSUPPORTED_STRING_SHAPE, "digest must be 64 hex chars, got %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, serr(ERR_UNSUPPORTED_STRING_SHAPE, "digest not hex: %q", s)
	}
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	var d Digest
	for i := 0; i < 8; i++ {
		d.Words[i] = binary.BigEndian.Uint32(raw[i*4 : i*4+4])
	}
	return d, nil
}

func serializeByteArray(s string) (Encoded, error) {
	body, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return nil, serr(ERR_UNSUPPORTED_STRING_SHAPE, "byte array must be 0x-prefixed: %q", s)
	}
	src, err := hex.DecodeString(body)
	if err != nil {
		return nil, serr(ERR_UNSUPPORTED_STRING_SHAPE, "byte array not hex: %q", s)
	}

	numChunks := len(src) / 31
	mainLen := numChunks * 31
	chunks := make([]*uint256.Int, 0, numChunks)
	for i := 0; i < mainLen; i += 31 {
		chunks = append(chunks, new(uint256.Int).SetBytes(src[i:i+31]))
	}

	// The remainder limb is the big-endian integer of the tail bytes; its
	// true length travels separately.
	remLen := len(src) - mainLen
	return ByteChunks{
		Chunks:       chunks,
		Remainder:    new(uint256.Int).SetBytes(src[mainLen:]),
		RemainderLen: uint32(remLen),
	}, nil
}
