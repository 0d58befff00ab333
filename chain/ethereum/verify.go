package ethereum

import (
	"bytes"
	"context"
	"math/big"
	"strings"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// SignatureOracle decides whether signature over hash was produced by address
// on the chain served by rpcURL.
type SignatureOracle interface {
	VerifySignature(ctx context.Context, rpcURL string, address common.Address, signature []byte, hash common.Hash) (bool, error)
}

type ContractCaller interface {
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

const erc1271ABI = `[{"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"magicValue","type":"bytes4"}],"stateMutability":"view","type":"function"}]`

var (
	erc1271Magic  = []byte{0x16, 0x26, 0xba, 0x7e}
	erc1271Parsed = mustParseABI(erc1271ABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// RPCOracle recovers the signer locally and falls back to an EIP-1271
// isValidSignature call for contract accounts.
type RPCOracle struct {
	Dial func(ctx context.Context, rpcURL string) (ContractCaller, error)
}

func NewRPCOracle() *RPCOracle {
	return &RPCOracle{Dial: func(ctx context.Context, rpcURL string) (ContractCaller, error) {
		return ethclient.DialContext(ctx, rpcURL)
	}}
}

func (o *RPCOracle) VerifySignature(ctx context.Context, rpcURL string, address common.Address, signature []byte, hash common.Hash) (bool, error) {
	if recovered, err := RecoverAddress(hash, signature); err == nil && recovered == address {
		return true, nil
	}
	client, err := o.Dial(ctx, rpcURL)
	if err != nil {
		return false, errors.Wrapf(err, "dial %s", rpcURL)
	}
	defer client.Close()
	data, err := erc1271Parsed.Pack("isValidSignature", [32]byte(hash), signature)
	if err != nil {
		return false, err
	}
	out, err := client.CallContract(ctx, geth.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		log.Debug("isValidSignature call failed", "address", address, "err", err)
		return false, nil
	}
	return len(out) >= 4 && bytes.Equal(out[:4], erc1271Magic), nil
}

// RecoverAddress recovers the signer of a 65 byte [R || S || V] signature. V
// may be 0/1 or 27/28.
func RecoverAddress(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoveryRoutine recovers the sender of a raw signed transaction.
type RecoveryRoutine struct {
	Name    string
	Recover func(raw []byte, chainID *big.Int) (*RecoveredTx, error)
}

type RecoveredTx struct {
	Sender  common.Address
	ChainID *big.Int
	To      *common.Address
	Gas     uint64
	Value   *big.Int
}

const (
	CeloMainnetReference   = "42220"
	CeloAlfajoresReference = "44787"
)

var (
	defaultRecovery = RecoveryRoutine{Name: "default", Recover: recoverTypedTx}
	celoRecovery    = RecoveryRoutine{Name: "celo-legacy", Recover: recoverCeloLegacyTx}

	recoveryByReference = map[string]RecoveryRoutine{
		CeloMainnetReference:   celoRecovery,
		CeloAlfajoresReference: celoRecovery,
	}
)

// RecoveryRoutineFor selects the sender recovery routine for a chain reference.
func RecoveryRoutineFor(reference string) RecoveryRoutine {
	if r, ok := recoveryByReference[reference]; ok {
		return r
	}
	return defaultRecovery
}

func recoverTypedTx(raw []byte, chainID *big.Int) (*RecoveredTx, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, errors.Wrap(err, "decode signed transaction")
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return nil, errors.Wrap(err, "recover transaction sender")
	}
	return &RecoveredTx{Sender: sender, ChainID: tx.ChainId(), To: tx.To(), Gas: tx.Gas(), Value: tx.Value()}, nil
}
