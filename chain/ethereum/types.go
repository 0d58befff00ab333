package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// Transaction is the JSON-RPC transaction object sent to the wallet.
type Transaction struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Nonce    string `json:"nonce"`
	GasPrice string `json:"gasPrice"`
	GasLimit string `json:"gasLimit"`
	Value    string `json:"value"`
}

func (t *Transaction) IntrinsicCost() (*big.Int, error) {
	gasPrice, err := hexutil.DecodeBig(t.GasPrice)
	if err != nil {
		return nil, errors.Wrap(err, "invalid gas price")
	}
	gasLimit, err := hexutil.DecodeUint64(t.GasLimit)
	if err != nil {
		return nil, errors.Wrap(err, "invalid gas limit")
	}
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit)), nil
}

// Matches reports whether a decoded signed transaction carries the fields that
// were requested.
func (t *Transaction) Matches(to *common.Address, gas uint64, value *big.Int) bool {
	if to == nil || !common.IsHexAddress(t.To) || *to != common.HexToAddress(t.To) {
		return false
	}
	gasLimit, err := hexutil.DecodeUint64(t.GasLimit)
	if err != nil || gasLimit != gas {
		return false
	}
	want, err := hexutil.DecodeBig(t.Value)
	return err == nil && value != nil && want.Cmp(value) == 0
}

const (
	defaultGasPrice = 20_000_000_000
	defaultGasLimit = 21_000
)

func testTransaction(address string, nonce uint64) *Transaction {
	return &Transaction{
		From:     address,
		To:       address,
		Data:     "0x",
		Nonce:    hexutil.EncodeUint64(nonce),
		GasPrice: hexutil.EncodeBig(big.NewInt(defaultGasPrice)),
		GasLimit: hexutil.EncodeUint64(defaultGasLimit),
		Value:    hexutil.EncodeBig(big.NewInt(1)),
	}
}

// testTypedData is the EIP-712 "Ether Mail" example bound to chainID.
func testTypedData(chainID *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: apitypes.TypedDataMessage{
			"from": map[string]interface{}{
				"name":   "Cow",
				"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			},
			"to": map[string]interface{}{
				"name":   "Bob",
				"wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
			},
			"contents": "Hello, Bob!",
		},
	}
}
