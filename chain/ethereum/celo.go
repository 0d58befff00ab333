package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// celoLegacyTx is the pre-Donut Celo transaction: an Ethereum legacy
// transaction with fee currency and gateway fee fields between gas and to.
type celoLegacyTx struct {
	Nonce               uint64
	GasPrice            *big.Int
	Gas                 uint64
	FeeCurrency         *common.Address `rlp:"nil"`
	GatewayFeeRecipient *common.Address `rlp:"nil"`
	GatewayFee          *big.Int
	To                  *common.Address `rlp:"nil"`
	Value               *big.Int
	Data                []byte
	V, R, S             *big.Int
}

func (tx *celoLegacyTx) sigHash(chainID *big.Int) (common.Hash, error) {
	enc, err := rlp.EncodeToBytes([]interface{}{
		tx.Nonce,
		tx.GasPrice,
		tx.Gas,
		tx.FeeCurrency,
		tx.GatewayFeeRecipient,
		tx.GatewayFee,
		tx.To,
		tx.Value,
		tx.Data,
		chainID, uint(0), uint(0),
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// recoverCeloLegacyTx derives the recovery id from V = chainId*2 + 35 + recid.
func recoverCeloLegacyTx(raw []byte, chainID *big.Int) (*RecoveredTx, error) {
	var tx celoLegacyTx
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return nil, errors.Wrap(err, "decode celo transaction")
	}
	if tx.V == nil || tx.R == nil || tx.S == nil {
		return nil, errors.New("celo transaction is not signed")
	}
	recID := new(big.Int).Sub(tx.V, big.NewInt(35))
	recID.Sub(recID, new(big.Int).Mul(chainID, big.NewInt(2)))
	if !recID.IsInt64() || (recID.Int64() != 0 && recID.Int64() != 1) {
		return nil, errors.Errorf("invalid celo recovery id for chain %s", chainID)
	}
	if tx.R.BitLen() > 256 || tx.S.BitLen() > 256 {
		return nil, errors.New("invalid celo signature values")
	}
	hash, err := tx.sigHash(chainID)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, crypto.SignatureLength)
	tx.R.FillBytes(sig[:32])
	tx.S.FillBytes(sig[32:64])
	sig[64] = byte(recID.Int64())
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return nil, errors.Wrap(err, "recover celo sender")
	}
	return &RecoveredTx{
		Sender:  crypto.PubkeyToAddress(*pub),
		ChainID: new(big.Int).Set(chainID),
		To:      tx.To,
		Gas:     tx.Gas,
		Value:   tx.Value,
	}, nil
}
