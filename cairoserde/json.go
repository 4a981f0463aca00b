package cairoserde

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ParseJSON ingests an untyped JSON argument file and reconstructs the tagged
// value tree. This is a compatibility shim for argument files produced by
// tooling that does not carry type tags: string shapes are sniffed in a fixed
// priority order (all-zero 64-hex, generic 64-hex digest, all-digit decimal,
// 0x-prefixed byte array), object key order is preserved positionally, and
// keys with a leading underscore mark pre-flattened inline data. New
// producers should build tagged Values directly instead of relying on this
// dispatch.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseTokenValue(dec)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseTokenValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("parse args: unexpected %q", t)
		}
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberValue(t)
	case string:
		return stringValue(t)
	case nil:
		return None{}, nil
	default:
		return nil, serr(ERR_UNSUPPORTED_VALUE_TYPE, "no mapping for token %v", tok)
	}
}

func parseObject(dec *json.Decoder) (Value, error) {
	var rec Rec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse args: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("parse args: object key is %v", tok)
		}
		if strings.HasPrefix(key, "_") {
			items, err := parseRawList(dec)
			if err != nil {
				return nil, err
			}
			rec = append(rec, Field{Name: key, Value: Raw(items), Inline: true})
			continue
		}
		val, err := parseTokenValue(dec)
		if err != nil {
			return nil, err
		}
		rec = append(rec, Field{Name: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return rec, nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	seq := Seq{}
	for dec.More() {
		val, err := parseTokenValue(dec)
		if err != nil {
			return nil, err
		}
		seq = append(seq, val)
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return seq, nil
}

// parseRawList reads the value of an inline ("_"-prefixed) key: an array of
// integers and nested arrays carried into the output verbatim.
func parseRawList(dec *json.Decoder) ([]Arg, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, serr(ERR_UNSUPPORTED_VALUE_TYPE, "inline key must hold an array, got %v", tok)
	}
	items := []Arg{}
	for dec.More() {
		item, err := parseRawItem(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return items, nil
}

func parseRawItem(dec *json.Decoder) (Arg, error) {
	tok, err := dec.Token()
	if err != nil {
		return Arg{}, fmt.Errorf("parse args: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		if t != '[' {
			return Arg{}, serr(ERR_UNSUPPORTED_VALUE_TYPE, "inline data: unexpected %q", t)
		}
		items := []Arg{}
		for dec.More() {
			item, err := parseRawItem(dec)
			if err != nil {
				return Arg{}, err
			}
			items = append(items, item)
		}
		if _, err := dec.Token(); err != nil {
			return Arg{}, fmt.Errorf("parse args: %w", err)
		}
		return ListArg(items), nil
	case json.Number:
		felt, err := parseFeltNumber(t)
		if err != nil {
			return Arg{}, err
		}
		return FeltArg(felt), nil
	case string:
		felt, err := parseHexFelt(t)
		if err != nil {
			return Arg{}, serr(ERR_UNSUPPORTED_VALUE_TYPE, "inline data: %v", err)
		}
		return FeltArg(felt), nil
	default:
		return Arg{}, serr(ERR_UNSUPPORTED_VALUE_TYPE, "inline data: no mapping for %v", tok)
	}
}

func numberValue(n json.Number) (Value, error) {
	felt, err := parseFeltNumber(n)
	if err != nil {
		return nil, err
	}
	return BigUint{V: felt}, nil
}

func parseFeltNumber(n json.Number) (*uint256.Int, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return nil, serr(ERR_UNSUPPORTED_VALUE_TYPE, "non-integer number %s", s)
	}
	if strings.HasPrefix(s, "-") {
		return nil, serr(ERR_OUT_OF_RANGE_SCALAR, "negative scalar %s", s)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, serr(ERR_OUT_OF_RANGE_SCALAR, "scalar %s: %v", s, err)
	}
	return v, nil
}

func stringValue(s string) (Value, error) {
	switch {
	case s == zeroDigest64:
		return DigestHex(s), nil
	case len(s) == 64 && isHexString(s):
		return DigestHex(s), nil
	case len(s) > 0 && isDigitString(s):
		return U256Dec(s), nil
	case strings.HasPrefix(s, "0x"):
		return BytesHex(s), nil
	default:
		return nil, serr(ERR_UNSUPPORTED_STRING_SHAPE, "unexpected string format: %q", s)
	}
}

func isHexString(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDigitString(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
