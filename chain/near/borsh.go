package near

import (
	"bytes"
	"encoding/binary"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

const (
	keyTypeED25519 = 0
	actionTransfer = 3
)

type PublicKeyED25519 struct {
	KeyType uint8
	Data    [32]byte
}

type Transfer struct {
	Deposit bin.Uint128
}

// Action is the borsh enum of near actions. Variants ahead of Transfer are
// never built and only hold their tag positions.
type Action struct {
	Enum           bin.BorshEnum `borsh_enum:"true"`
	CreateAccount  bin.EmptyVariant
	DeployContract bin.EmptyVariant
	FunctionCall   bin.EmptyVariant
	Transfer       Transfer
}

type Transaction struct {
	SignerID   string
	PublicKey  PublicKeyED25519
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []Action
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// NewTransfer returns a transfer action moving deposit yoctoNEAR.
func NewTransfer(deposit *big.Int) (Action, error) {
	if deposit.Sign() < 0 || deposit.Cmp(maxUint128) > 0 {
		return Action{}, errors.Errorf("value %s does not fit u128", deposit)
	}
	var be [16]byte
	deposit.FillBytes(be[:])
	return Action{
		Enum: actionTransfer,
		Transfer: Transfer{Deposit: bin.Uint128{
			Lo:         binary.BigEndian.Uint64(be[8:]),
			Hi:         binary.BigEndian.Uint64(be[:8]),
			Endianness: binary.LittleEndian,
		}},
	}, nil
}

// Serialize returns the borsh encoding of tx.
func (tx *Transaction) Serialize() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(tx); err != nil {
		return nil, errors.Wrap(err, "borsh encode transaction")
	}
	return buf.Bytes(), nil
}

// SplitSignedTransaction separates a borsh SignedTransaction into the
// transaction bytes and its ed25519 signature, given the transaction length.
func SplitSignedTransaction(signed []byte, txLen int) ([]byte, []byte, error) {
	if len(signed) != txLen+1+64 {
		return nil, nil, errors.Errorf("signed transaction has %d bytes, expected %d", len(signed), txLen+65)
	}
	if signed[txLen] != keyTypeED25519 {
		return nil, nil, errors.Errorf("unsupported signature key type %d", signed[txLen])
	}
	return signed[:txLen], signed[txLen+1:], nil
}
