package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "eip155"

const (
	MethodSendTransaction  = "eth_sendTransaction"
	MethodSignTransaction  = "eth_signTransaction"
	MethodPersonalSign     = "personal_sign"
	MethodEthSign          = "eth_sign"
	MethodSignTypedData    = "eth_signTypedData"
	MethodSignTypedDataV4  = "eth_signTypedData_v4"
	MethodAccounts         = "eth_accounts"
	MethodRequestAccounts  = "eth_requestAccounts"
	MethodGetBalance       = "eth_getBalance"
	LabelEthSignStandard   = MethodEthSign + " (standard)"
	LabelEthSignLegacy     = MethodEthSign + " (legacy)"
	defaultPersonalMessage = "My email is john@doe.com - %d"
)

var Methods = []string{
	MethodSendTransaction,
	MethodSignTransaction,
	MethodPersonalSign,
	MethodEthSign,
	MethodSignTypedData,
	MethodSignTypedDataV4,
	MethodAccounts,
	MethodRequestAccounts,
	MethodGetBalance,
}

type ChainAdaptor struct {
	oracle SignatureOracle
}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return NewChainAdaptorWithOracle(NewRPCOracle()), nil
}

func NewChainAdaptorWithOracle(oracle SignatureOracle) *ChainAdaptor {
	return &ChainAdaptor{oracle: oracle}
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	ops := []chain.Op{
		c.sendTransaction(),
		c.signTransaction(),
		c.personalSign(),
		c.ethSign(LabelEthSignStandard, false),
		c.ethSign(LabelEthSignLegacy, true),
		c.signTypedData(MethodSignTypedData),
		c.signTypedData(MethodSignTypedDataV4),
	}
	table := make(map[string]chain.Op, len(ops))
	for _, op := range ops {
		table[op.Label()] = op
	}
	return table
}

type message struct {
	Text string
	Hex  string
}

func buildMessage(ctx context.Context, env *chain.Env, account chain.ChainAccount) (message, error) {
	if !common.IsHexAddress(account.Address) {
		return message{}, errors.Errorf("invalid eip155 address %s", account.Address)
	}
	text := fmt.Sprintf(defaultPersonalMessage, env.Timestamp().UnixMilli())
	return message{Text: text, Hex: hexutil.Encode([]byte(text))}, nil
}

func (c *ChainAdaptor) personalSign() chain.Op {
	return &chain.Operation[message]{
		Method: MethodPersonalSign,
		Build:  buildMessage,
		Encode: func(account chain.ChainAccount, m message) (any, error) {
			return []string{m.Hex, account.Address}, nil
		},
		Verify: c.verifyMessage,
	}
}

// ethSign sends [address, message] in the standard order and [message, address]
// for legacy wallets.
func (c *ChainAdaptor) ethSign(label string, legacy bool) chain.Op {
	return &chain.Operation[message]{
		Method: MethodEthSign,
		Name:   label,
		Build:  buildMessage,
		Encode: func(account chain.ChainAccount, m message) (any, error) {
			if legacy {
				return []string{m.Hex, account.Address}, nil
			}
			return []string{account.Address, m.Hex}, nil
		},
		Verify: c.verifyMessage,
	}
}

func (c *ChainAdaptor) verifyMessage(ctx context.Context, env *chain.Env, account chain.ChainAccount, m message, raw json.RawMessage) (chain.Verdict, error) {
	var signature string
	if err := chain.DecodeResult(raw, &signature); err != nil {
		return chain.Verdict{}, err
	}
	valid, err := c.verify(ctx, env, account, signature, common.BytesToHash(accounts.TextHash([]byte(m.Text))))
	if err != nil {
		return chain.Verdict{}, err
	}
	return chain.Verified(valid, signature), nil
}

func (c *ChainAdaptor) verify(ctx context.Context, env *chain.Env, account chain.ChainAccount, signature string, hash common.Hash) (bool, error) {
	rpcURL, err := env.Endpoint(account.Reference)
	if err != nil {
		return false, err
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, chain.Malformed("invalid signature encoding: %v", err)
	}
	return c.oracle.VerifySignature(ctx, rpcURL, common.HexToAddress(account.Address), sig, hash)
}

func (c *ChainAdaptor) signTypedData(method string) chain.Op {
	return &chain.Operation[apitypes.TypedData]{
		Method: method,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (apitypes.TypedData, error) {
			chainID, ok := new(big.Int).SetString(account.Reference, 10)
			if !ok {
				return apitypes.TypedData{}, errors.Errorf("invalid eip155 reference %s", account.Reference)
			}
			return testTypedData(chainID), nil
		},
		Encode: func(account chain.ChainAccount, td apitypes.TypedData) (any, error) {
			b, err := json.Marshal(td)
			if err != nil {
				return nil, err
			}
			return []string{account.Address, string(b)}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, td apitypes.TypedData, raw json.RawMessage) (chain.Verdict, error) {
			var signature string
			if err := chain.DecodeResult(raw, &signature); err != nil {
				return chain.Verdict{}, err
			}
			hash, _, err := apitypes.TypedDataAndHash(td)
			if err != nil {
				return chain.Verdict{}, errors.Wrap(err, "hash typed data")
			}
			valid, err := c.verify(ctx, env, account, signature, common.BytesToHash(hash))
			if err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(valid, signature), nil
		},
	}
}

func (c *ChainAdaptor) sendTransaction() chain.Op {
	return &chain.Operation[*Transaction]{
		Method: MethodSendTransaction,
		Build:  buildTransaction,
		Encode: func(_ chain.ChainAccount, tx *Transaction) (any, error) { return []*Transaction{tx}, nil },
		Admit: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, tx *Transaction) (string, bool) {
			cost, err := tx.IntrinsicCost()
			if err != nil {
				return err.Error(), false
			}
			if env.Balance(account).Cmp(cost) < 0 {
				return chain.InsufficientFunds, false
			}
			return "", true
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, tx *Transaction, raw json.RawMessage) (chain.Verdict, error) {
			var txHash string
			if err := chain.DecodeResult(raw, &txHash); err != nil {
				return chain.Verdict{}, err
			}
			b, err := hexutil.Decode(txHash)
			return chain.Verified(err == nil && len(b) == common.HashLength, txHash), nil
		},
	}
}

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*Transaction]{
		Method: MethodSignTransaction,
		Build:  buildTransaction,
		Encode: func(_ chain.ChainAccount, tx *Transaction) (any, error) { return []*Transaction{tx}, nil },
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, tx *Transaction, raw json.RawMessage) (chain.Verdict, error) {
			var signedTx string
			if err := chain.DecodeResult(raw, &signedTx); err != nil {
				return chain.Verdict{}, err
			}
			rawTx, err := hexutil.Decode(signedTx)
			if err != nil {
				return chain.Verdict{}, chain.Malformed("invalid signed transaction encoding: %v", err)
			}
			chainID, ok := new(big.Int).SetString(account.Reference, 10)
			if !ok {
				return chain.Verdict{}, errors.Errorf("invalid eip155 reference %s", account.Reference)
			}
			routine := RecoveryRoutineFor(account.Reference)
			recovered, err := routine.Recover(rawTx, chainID)
			if err != nil {
				log.Error("recover transaction sender fail", "routine", routine.Name, "err", err)
				return chain.Verified(false, signedTx), nil
			}
			log.Debug("recovered signed transaction", "routine", routine.Name, "tx", spew.Sdump(recovered))
			valid := strings.EqualFold(recovered.Sender.Hex(), account.Address) &&
				recovered.ChainID != nil && recovered.ChainID.Cmp(chainID) == 0 &&
				tx.Matches(recovered.To, recovered.Gas, recovered.Value)
			return chain.Verified(valid, signedTx), nil
		},
	}
}

func buildTransaction(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*Transaction, error) {
	if !common.IsHexAddress(account.Address) {
		return nil, errors.Errorf("invalid eip155 address %s", account.Address)
	}
	return testTransaction(common.HexToAddress(account.Address).Hex(), 0), nil
}
