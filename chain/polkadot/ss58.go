package polkadot

import (
	"bytes"

	"github.com/cosmos/btcutil/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(data)
	return h.Sum(nil)[:2]
}

// DecodeAddress returns the network format and public key of an SS58 address
// with a single-byte format prefix.
func DecodeAddress(address string) (byte, [32]byte, error) {
	var pub [32]byte
	raw := base58.Decode(address)
	if len(raw) != 35 {
		return 0, pub, errors.Errorf("unsupported ss58 address %s", address)
	}
	if raw[0] >= 64 {
		return 0, pub, errors.Errorf("unsupported ss58 format %d", raw[0])
	}
	if !bytes.Equal(ss58Checksum(raw[:33]), raw[33:]) {
		return 0, pub, errors.Errorf("invalid ss58 checksum for %s", address)
	}
	copy(pub[:], raw[1:33])
	return raw[0], pub, nil
}

func EncodeAddress(format byte, pub [32]byte) string {
	data := append([]byte{format}, pub[:]...)
	return base58.Encode(append(data, ss58Checksum(data)...))
}
