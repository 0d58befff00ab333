package polkadot

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
)

// appendCompact appends the SCALE compact encoding of x.
func appendCompact(b []byte, x *big.Int) ([]byte, error) {
	if x.Sign() < 0 {
		return nil, errors.New("compact value must be non-negative")
	}
	switch {
	case x.Cmp(big.NewInt(1<<6)) < 0:
		return append(b, byte(x.Uint64()<<2)), nil
	case x.Cmp(big.NewInt(1<<14)) < 0:
		return binary.LittleEndian.AppendUint16(b, uint16(x.Uint64()<<2|0b01)), nil
	case x.Cmp(big.NewInt(1<<30)) < 0:
		return binary.LittleEndian.AppendUint32(b, uint32(x.Uint64()<<2|0b10)), nil
	}
	be := x.Bytes()
	if len(be) > 67 {
		return nil, errors.New("compact value too large")
	}
	b = append(b, byte((len(be)-4)<<2|0b11))
	for i := len(be) - 1; i >= 0; i-- {
		b = append(b, be[i])
	}
	return b, nil
}

// SigningPayload is the subset of an extrinsic payload the signer commits to.
type SigningPayload struct {
	Method             []byte
	Era                []byte
	Nonce              uint64
	Tip                *big.Int
	SpecVersion        uint32
	TransactionVersion uint32
	GenesisHash        [32]byte
	BlockHash          [32]byte
}

func (p *SigningPayload) Encode() ([]byte, error) {
	b := append([]byte{}, p.Method...)
	b = append(b, p.Era...)
	b, err := appendCompact(b, new(big.Int).SetUint64(p.Nonce))
	if err != nil {
		return nil, err
	}
	tip := p.Tip
	if tip == nil {
		tip = new(big.Int)
	}
	if b, err = appendCompact(b, tip); err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint32(b, p.SpecVersion)
	b = binary.LittleEndian.AppendUint32(b, p.TransactionVersion)
	b = append(b, p.GenesisHash[:]...)
	return append(b, p.BlockHash[:]...), nil
}
