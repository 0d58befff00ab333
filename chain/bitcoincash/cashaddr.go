package bitcoincash

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

const (
	MainnetPrefix = "bitcoincash"
	TestnetPrefix = "bchtest"

	versionP2PKH = 0x00
	versionP2SH  = 0x08
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func polymod(values []byte) uint64 {
	generators := [5]uint64{0x98f2bc8e61, 0x79b76d99e2, 0xf33e5fb3c4, 0xae2eabe2a8, 0x1e4f43e470}
	chk := uint64(1)
	for _, v := range values {
		top := chk >> 35
		chk = (chk&0x07ffffffff)<<5 ^ uint64(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= generators[i]
			}
		}
	}
	return chk ^ 1
}

func prefixData(prefix string) []byte {
	out := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		out = append(out, prefix[i]&0x1f)
	}
	return append(out, 0)
}

// Address is a decoded cashaddr.
type Address struct {
	Prefix  string
	Version byte
	Hash    []byte
}

func (a Address) IsP2PKH() bool { return a.Version == versionP2PKH }

// String encodes the address with its prefix.
func (a Address) String() string {
	payload, _ := bech32.ConvertBits(append([]byte{a.Version}, a.Hash...), 8, 5, true)
	values := append(prefixData(a.Prefix), payload...)
	check := polymod(append(values, make([]byte, 8)...))
	var sb strings.Builder
	sb.WriteString(a.Prefix)
	sb.WriteByte(':')
	for _, v := range payload {
		sb.WriteByte(charset[v])
	}
	for i := 0; i < 8; i++ {
		sb.WriteByte(charset[(check>>uint(5*(7-i)))&0x1f])
	}
	return sb.String()
}

// DecodeAddress parses a cashaddr. A missing prefix is read as defaultPrefix.
func DecodeAddress(address, defaultPrefix string) (Address, error) {
	lower := strings.ToLower(address)
	if lower != address && strings.ToUpper(address) != address {
		return Address{}, errors.Errorf("mixed case cashaddr %s", address)
	}
	prefix, body := defaultPrefix, lower
	if i := strings.IndexByte(lower, ':'); i >= 0 {
		prefix, body = lower[:i], lower[i+1:]
	}
	if len(body) < 9 {
		return Address{}, errors.Errorf("cashaddr %s too short", address)
	}
	values := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		idx := strings.IndexByte(charset, body[i])
		if idx < 0 {
			return Address{}, errors.Errorf("invalid cashaddr character %q", body[i])
		}
		values[i] = byte(idx)
	}
	if polymod(append(prefixData(prefix), values...)) != 0 {
		return Address{}, errors.Errorf("invalid cashaddr checksum for %s", address)
	}
	raw, err := bech32.ConvertBits(values[:len(values)-8], 5, 8, false)
	if err != nil {
		return Address{}, errors.Wrap(err, "convert cashaddr payload")
	}
	if len(raw) != 21 {
		return Address{}, errors.Errorf("unsupported cashaddr hash length %d", len(raw)-1)
	}
	return Address{Prefix: prefix, Version: raw[0], Hash: raw[1:]}, nil
}
