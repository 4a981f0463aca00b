package cairoserde

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Arg is one element of the flattened argument sequence: either a single
// felt or a nested ordered sequence. The JSON form is the literal contract
// consumed by the external prover — scalars as lowercase minimal 0x hex
// strings, nested sequences as arrays — so any reordering or shape change
// here is a breaking change downstream.
type Arg struct {
	Felt   *uint256.Int
	Items  []Arg
	IsList bool
}

// FeltArg wraps a scalar felt.
func FeltArg(v *uint256.Int) Arg {
	return Arg{Felt: v}
}

// FeltArgUint64 wraps a small scalar felt.
func FeltArgUint64(v uint64) Arg {
	return Arg{Felt: uint256.NewInt(v)}
}

// ListArg wraps a nested sequence.
func ListArg(items []Arg) Arg {
	return Arg{Items: items, IsList: true}
}

func (a Arg) MarshalJSON() ([]byte, error) {
	if a.IsList {
		if a.Items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Items)
	}
	if a.Felt == nil {
		return nil, fmt.Errorf("arg: nil felt")
	}
	return json.Marshal(a.Felt.Hex())
}

func (a *Arg) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var items []Arg
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		if items == nil {
			items = []Arg{}
		}
		*a = ListArg(items)
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		felt, err := parseHexFelt(s)
		if err != nil {
			return err
		}
		*a = FeltArg(felt)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("arg: expected hex string, number, or array, got %s", trimmed)
	}
	felt, err := uint256.FromDecimal(n.String())
	if err != nil {
		return fmt.Errorf("arg: %w", err)
	}
	*a = FeltArg(felt)
	return nil
}

// Flatten expands the encoded tree into the final ordered argument sequence.
// Tuples and length-prefixed sequences splice into their parent positionally;
// pre-flattened nested lists keep their nesting. Every scalar leaf is a
// non-negative felt.
func Flatten(e Encoded) []Arg {
	var out []Arg
	e.flattenInto(&out)
	if out == nil {
		out = []Arg{}
	}
	return out
}

// EncodeArgs serializes and flattens a tagged value tree in one step.
func EncodeArgs(v Value) ([]Arg, error) {
	enc, err := Serialize(v)
	if err != nil {
		return nil, err
	}
	return Flatten(enc), nil
}

// FormatArgs produces the prover-facing JSON array of hex-string arguments.
func FormatArgs(v Value) ([]byte, error) {
	args, err := EncodeArgs(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(args)
}

func (s Scalar) flattenInto(out *[]Arg) {
	*out = append(*out, FeltArg(s.V))
}

func (d Digest) flattenInto(out *[]Arg) {
	for _, w := range d.Words {
		*out = append(*out, FeltArgUint64(uint64(w)))
	}
}

func (w WideInt) flattenInto(out *[]Arg) {
	*out = append(*out, FeltArg(w.Lo), FeltArg(w.Hi))
}

func (b ByteChunks) flattenInto(out *[]Arg) {
	*out = append(*out, FeltArgUint64(uint64(len(b.Chunks))))
	for _, chunk := range b.Chunks {
		*out = append(*out, FeltArg(chunk))
	}
	*out = append(*out, FeltArg(b.Remainder), FeltArgUint64(uint64(b.RemainderLen)))
}

func (s Sequence) flattenInto(out *[]Arg) {
	for _, e := range s.Elems {
		e.flattenInto(out)
	}
}

func (t Tuple) flattenInto(out *[]Arg) {
	for _, e := range t.Elems {
		e.flattenInto(out)
	}
}

func (s Spliced) flattenInto(out *[]Arg) {
	*out = append(*out, s.Items...)
}

func parseHexFelt(s string) (*uint256.Int, error) {
	body := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if body == "" {
		return nil, fmt.Errorf("arg: empty hex value")
	}
	if len(body)%2 != 0 {
		body = "0" + body
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("arg: invalid hex %q: %w", s, err)
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("arg: hex value %q exceeds 256 bits", s)
	}
	return new(uint256.Int).SetBytes(raw), nil
}
