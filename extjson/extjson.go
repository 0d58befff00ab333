// Package extjson encodes values JSON cannot carry losslessly: arbitrary
// precision integers become "<bigint: 123n>" and byte buffers become
// "<Uint8Array: 0x0102>". Decoding restores the original Go types.
package extjson

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	bigIntPattern = regexp.MustCompile(`^<bigint: (-?[0-9]+)n>$`)
	bytesPattern  = regexp.MustCompile(`^<Uint8Array: 0x([0-9a-fA-F]*)>$`)
)

type BigInt struct {
	*big.Int
}

func NewBigInt(x *big.Int) BigInt {
	return BigInt{Int: new(big.Int).Set(x)}
}

func BigIntFromUint64(x uint64) BigInt {
	return BigInt{Int: new(big.Int).SetUint64(x)}
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return []byte("null"), nil
	}
	return marshal(formatBigInt(b.Int))
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		b.Int = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("extjson: bigint must be a tagged string, got %s", data)
	}
	x, ok := parseBigInt(s)
	if !ok {
		return errors.Errorf("extjson: invalid bigint %q", s)
	}
	b.Int = x
	return nil
}

type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	return marshal(formatBytes(b))
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("extjson: byte buffer must be a tagged string, got %s", data)
	}
	raw, ok := parseBytes(s)
	if !ok {
		return errors.Errorf("extjson: invalid byte buffer %q", s)
	}
	*b = raw
	return nil
}

func (b Bytes) Hex() string {
	return hex.EncodeToString(b)
}

func formatBigInt(x *big.Int) string {
	return "<bigint: " + x.String() + "n>"
}

func formatBytes(b []byte) string {
	return "<Uint8Array: 0x" + hex.EncodeToString(b) + ">"
}

func parseBigInt(s string) (*big.Int, bool) {
	m := bigIntPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	return new(big.Int).SetString(m[1], 10)
}

func parseBytes(s string) ([]byte, bool) {
	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	raw, err := hex.DecodeString(m[1])
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Marshal encodes v. Untyped *big.Int and []byte values nested in maps and
// slices are tagged, typed fields use BigInt and Bytes.
func Marshal(v any) ([]byte, error) {
	return marshal(tag(v))
}

// marshal is json.Marshal without HTML escaping, so tags keep their angle
// brackets on the wire.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes into a typed destination.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Revive decodes into generic values, restoring tagged strings to *big.Int and
// []byte and keeping plain numbers as json.Number.
func Revive(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "extjson: decode")
	}
	return untag(v), nil
}

// Value converts a typed structure to the generic tagged representation.
func Value(v any) (any, error) {
	b, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func tag(v any) any {
	switch t := v.(type) {
	case *big.Int:
		if t == nil {
			return nil
		}
		return formatBigInt(t)
	case []byte:
		return formatBytes(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = tag(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = tag(e)
		}
		return out
	default:
		return v
	}
}

func untag(v any) any {
	switch t := v.(type) {
	case string:
		if !strings.HasPrefix(t, "<") {
			return t
		}
		if x, ok := parseBigInt(t); ok {
			return x
		}
		if b, ok := parseBytes(t); ok {
			return b
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = untag(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = untag(e)
		}
		return t
	default:
		return v
	}
}
