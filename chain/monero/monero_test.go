package monero

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

const testAddress = "44AFFq5kSiGBoZ4NMDwYtN18obc8AemS33DBLWs3H7otXft3XjrpDtQGv7SqSsaBYBb98uNbr2VBBEt7f2wfn3RVGQBEP3A"

type directory map[string]*big.Int

func (d directory) GetAccounts(chainID string) []string { return nil }

func (d directory) GetBalance(chainID, address string) (*big.Int, bool) {
	v, ok := d[address]
	return v, ok
}

func reply(raw string) (chain.Requester, *chain.RpcCall) {
	var seen chain.RpcCall
	return chain.RequesterFunc(func(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
		seen = call
		return json.RawMessage(raw), nil
	}), &seen
}

func run(t *testing.T, env *chain.Env, req chain.Requester, label string) *chain.FormattedResult {
	op := (&ChainAdaptor{}).Operations()[label]
	require.NotNil(t, op)
	res, err := op.Run(context.Background(), env, req, chain.ChainAccount{Namespace: ChainName, Reference: "mainnet", Address: testAddress})
	require.NoError(t, err)
	return res
}

func TestSendTransferKeepsAmountPrecision(t *testing.T) {
	req, seen := reply(`{"txHash":"abc123"}`)
	res := run(t, &chain.Env{Testnet: true}, req, MethodSendTransfer)
	assert.True(t, res.Valid)
	assert.Equal(t, "abc123", res.Result)

	b, err := extjson.Marshal(seen.Params)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"amount":"<bigint: 12345678901234567n>"`)
	assert.Contains(t, string(b), `"networkType":"testnet"`)

	var params SendTransferParams
	require.NoError(t, extjson.Unmarshal(b, &params))
	assert.Equal(t, 0, transferAmount.Cmp(params.Destinations[0].Amount.Int))
}

func TestGetBalance(t *testing.T) {
	req, _ := reply(`{"balance":"<bigint: 9007199254740993n>"}`)
	res := run(t, &chain.Env{}, req, MethodGetBalance)
	assert.True(t, res.Valid)
	assert.Equal(t, "9007199254740993", res.Result)

	known, _ := new(big.Int).SetString("500000000000", 10)
	req, _ = reply(`{}`)
	res = run(t, &chain.Env{Directory: directory{testAddress: known}}, req, MethodGetBalance)
	assert.True(t, res.Valid)
	assert.Equal(t, "500000000000", res.Result)
}

func TestSignMessageIsValidOnCompletion(t *testing.T) {
	req, seen := reply(`{"signature":"SigV2abc"}`)
	res := run(t, &chain.Env{}, req, MethodSignMessage)
	assert.True(t, res.Valid)
	assert.Equal(t, "SigV2abc", res.Result)
	assert.Equal(t, MethodSignMessage, seen.Method)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "x", resultString(json.RawMessage(`"x"`), "txHash"))
	assert.Equal(t, `[1]`, resultString(json.RawMessage(`[1]`), "txHash"))
}
