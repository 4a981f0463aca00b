package cairoserde

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
)

func mustSerialize(t *testing.T, v Value) Encoded {
	t.Helper()
	enc, err := Serialize(v)
	if err != nil {
		t.Fatalf("Serialize(%#v): %v", v, err)
	}
	return enc
}

func TestSerializeBool(t *testing.T) {
	enc := mustSerialize(t, Bool(true))
	if s, ok := enc.(Scalar); !ok || !s.V.Eq(uint256.NewInt(1)) {
		t.Fatalf("Bool(true) = %#v", enc)
	}
	enc = mustSerialize(t, Bool(false))
	if s, ok := enc.(Scalar); !ok || !s.V.IsZero() {
		t.Fatalf("Bool(false) = %#v", enc)
	}
}

func TestSerializeNone(t *testing.T) {
	enc := mustSerialize(t, None{})
	if s, ok := enc.(Scalar); !ok || !s.V.Eq(uint256.NewInt(1)) {
		t.Fatalf("None = %#v", enc)
	}
}

func TestSerializeScalarRange(t *testing.T) {
	max := new(uint256.Int).Lsh(uint256.NewInt(1), 252)
	if _, err := Serialize(BigUint{V: max}); !IsCode(err, ERR_OUT_OF_RANGE_SCALAR) {
		t.Fatalf("expected out-of-range for 2^252, got %v", err)
	}
	justBelow := new(uint256.Int).Sub(max, uint256.NewInt(1))
	enc := mustSerialize(t, BigUint{V: justBelow})
	if s, ok := enc.(Scalar); !ok || !s.V.Eq(justBelow) {
		t.Fatalf("2^252-1 = %#v", enc)
	}
}

func TestSerializeZeroDigest(t *testing.T) {
	enc := mustSerialize(t, DigestHex(strings.Repeat("0", 64)))
	d, ok := enc.(Digest)
	if !ok {
		t.Fatalf("zero digest = %#v", enc)
	}
	for i, w := range d.Words {
		if w != 0 {
			t.Fatalf("word %d = %d, want 0", i, w)
		}
	}
}

func TestSerializeDigestWordOrder(t *testing.T) {
	// 31 zero bytes then 0x01: reversed stream starts 0x01, so the first
	// big-endian word is 0x01000000.
	enc := mustSerialize(t, DigestHex(strings.Repeat("0", 62)+"01"))
	d, ok := enc.(Digest)
	if !ok {
		t.Fatalf("digest = %#v", enc)
	}
	if d.Words[0] != 0x01000000 {
		t.Fatalf("word 0 = %08x, want 01000000", d.Words[0])
	}
	for i := 1; i < 8; i++ {
		if d.Words[i] != 0 {
			t.Fatalf("word %d = %08x, want 0", i, d.Words[i])
		}
	}
}

func TestSerializeDigestMixedCase(t *testing.T) {
	enc := mustSerialize(t, DigestHex("00000000019BF1f7"+strings.Repeat("0", 48)))
	if _, ok := enc.(Digest); !ok {
		t.Fatalf("digest = %#v", enc)
	}
}

func TestSerializeDigestBadShape(t *testing.T) {
	for _, s := range []string{"", "abcd", strings.Repeat("z", 64)} {
		if _, err := Serialize(DigestHex(s)); !IsCode(err, ERR_UNSUPPORTED_STRING_SHAPE) {
			t.Fatalf("DigestHex(%q): got %v", s, err)
		}
	}
}

func TestSerializeU256Dec(t *testing.T) {
	enc := mustSerialize(t, U256Dec("18"))
	w, ok := enc.(WideInt)
	if !ok {
		t.Fatalf("U256Dec(18) = %#v", enc)
	}
	if !w.Lo.Eq(uint256.NewInt(18)) || !w.Hi.IsZero() {
		t.Fatalf("U256Dec(18) = lo %s hi %s", w.Lo, w.Hi)
	}
}

func TestSerializeU256DecLimbSplit(t *testing.T) {
	// 2^128 + 7: lo = 7, hi = 1.
	enc := mustSerialize(t, U256Dec("340282366920938463463374607431768211463"))
	w, ok := enc.(WideInt)
	if !ok {
		t.Fatalf("limb split = %#v", enc)
	}
	if !w.Lo.Eq(uint256.NewInt(7)) {
		t.Fatalf("lo = %s, want 7", w.Lo)
	}
	if !w.Hi.Eq(uint256.NewInt(1)) {
		t.Fatalf("hi = %s, want 1", w.Hi)
	}
}

func TestSerializeU256DecOverflow(t *testing.T) {
	// 2^256 is one past the representable range.
	over := "115792089237316195423570985008687907853269984665640564039457584007913129639936"
	if _, err := Serialize(U256Dec(over)); !IsCode(err, ERR_OUT_OF_RANGE_SCALAR) {
		t.Fatalf("expected out-of-range, got %v", err)
	}
}

func TestSerializeEmptyByteArray(t *testing.T) {
	enc := mustSerialize(t, BytesHex("0x"))
	b, ok := enc.(ByteChunks)
	if !ok {
		t.Fatalf("BytesHex(0x) = %#v", enc)
	}
	if len(b.Chunks) != 0 || !b.Remainder.IsZero() || b.RemainderLen != 0 {
		t.Fatalf("empty byte array = %#v", b)
	}
}

func TestSerializeByteArrayChunking(t *testing.T) {
	// 33 bytes: one full 31-byte chunk, 2 remainder bytes.
	body := strings.Repeat("ab", 31) + "0102"
	enc := mustSerialize(t, BytesHex("0x"+body))
	b, ok := enc.(ByteChunks)
	if !ok {
		t.Fatalf("byte array = %#v", enc)
	}
	if len(b.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(b.Chunks))
	}
	if !b.Remainder.Eq(uint256.NewInt(0x0102)) {
		t.Fatalf("remainder = %s, want 258", b.Remainder)
	}
	if b.RemainderLen != 2 {
		t.Fatalf("remainder len = %d, want 2", b.RemainderLen)
	}
}

func TestSerializeByteArrayExactChunk(t *testing.T) {
	enc := mustSerialize(t, BytesHex("0x"+strings.Repeat("ff", 31)))
	b := enc.(ByteChunks)
	if len(b.Chunks) != 1 || !b.Remainder.IsZero() || b.RemainderLen != 0 {
		t.Fatalf("31-byte array = chunks %d rem %s len %d", len(b.Chunks), b.Remainder, b.RemainderLen)
	}
}

func TestSerializeByteArrayBadShape(t *testing.T) {
	if _, err := Serialize(BytesHex("abcd")); !IsCode(err, ERR_UNSUPPORTED_STRING_SHAPE) {
		t.Fatalf("missing prefix: got %v", err)
	}
	if _, err := Serialize(BytesHex("0xzz")); !IsCode(err, ERR_UNSUPPORTED_STRING_SHAPE) {
		t.Fatalf("bad hex: got %v", err)
	}
}

func TestSerializeSeq(t *testing.T) {
	enc := mustSerialize(t, Seq{Uint(7), Uint(9)})
	args := Flatten(enc)
	want := []uint64{2, 7, 9}
	if len(args) != len(want) {
		t.Fatalf("args = %d, want %d", len(args), len(want))
	}
	for i, w := range want {
		if !args[i].Felt.Eq(uint256.NewInt(w)) {
			t.Fatalf("arg %d = %s, want %d", i, args[i].Felt, w)
		}
	}
}

func TestSerializeRecOrderAndInline(t *testing.T) {
	rec := Rec{
		{Name: "version", Value: Uint(4)},
		{Name: "_proof", Value: Raw{FeltArgUint64(77), ListArg([]Arg{FeltArgUint64(88)})}, Inline: true},
		{Name: "time", Value: Uint(5)},
	}
	args, err := EncodeArgs(rec)
	if err != nil {
		t.Fatalf("EncodeArgs: %v", err)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if !args[0].Felt.Eq(uint256.NewInt(4)) || !args[1].Felt.Eq(uint256.NewInt(77)) {
		t.Fatalf("positional order broken: %v %v", args[0].Felt, args[1].Felt)
	}
	if !args[2].IsList || len(args[2].Items) != 1 {
		t.Fatalf("nested list not preserved: %#v", args[2])
	}
	if !args[3].Felt.Eq(uint256.NewInt(5)) {
		t.Fatalf("trailing field = %s", args[3].Felt)
	}
}

func TestSerializeInlineRequiresRaw(t *testing.T) {
	rec := Rec{{Name: "_bad", Value: Uint(1), Inline: true}}
	if _, err := Serialize(rec); !IsCode(err, ERR_UNSUPPORTED_VALUE_TYPE) {
		t.Fatalf("expected unsupported value type, got %v", err)
	}
}
