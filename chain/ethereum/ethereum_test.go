package ethereum

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type balances map[string]*big.Int

func (b balances) GetAccounts(chainID string) []string { return nil }

func (b balances) GetBalance(chainID, address string) (*big.Int, bool) {
	v, ok := b[strings.ToLower(address)]
	return v, ok
}

type fakeWallet struct {
	t      *testing.T
	key    *ecdsa.PrivateKey
	tamper bool
	celo   bool
	calls  int
	last   chain.RpcCall
}

func newFakeWallet(t *testing.T) *fakeWallet {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return &fakeWallet{t: t, key: key}
}

func (w *fakeWallet) address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

func (w *fakeWallet) sign(hash []byte) string {
	sig, err := crypto.Sign(hash, w.key)
	require.NoError(w.t, err)
	sig[64] += 27
	if w.tamper {
		sig[10] ^= 0xff
	}
	return hexutil.Encode(sig)
}

func (w *fakeWallet) Request(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	w.calls++
	w.last = call
	var params []json.RawMessage
	require.NoError(w.t, call.DecodeParams(&params))
	switch call.Method {
	case MethodPersonalSign, MethodEthSign:
		var first, second string
		require.NoError(w.t, json.Unmarshal(params[0], &first))
		require.NoError(w.t, json.Unmarshal(params[1], &second))
		msgHex := first
		if common.IsHexAddress(first) {
			msgHex = second
		}
		return json.Marshal(w.sign(accounts.TextHash(hexutil.MustDecode(msgHex))))
	case MethodSignTypedData, MethodSignTypedDataV4:
		var encoded string
		require.NoError(w.t, json.Unmarshal(params[1], &encoded))
		var td apitypes.TypedData
		require.NoError(w.t, json.Unmarshal([]byte(encoded), &td))
		hash, _, err := apitypes.TypedDataAndHash(td)
		require.NoError(w.t, err)
		return json.Marshal(w.sign(hash))
	case MethodSendTransaction:
		return json.Marshal(crypto.Keccak256Hash([]byte("tx")).Hex())
	case MethodSignTransaction:
		var tx Transaction
		require.NoError(w.t, json.Unmarshal(params[0], &tx))
		chainID, _ := new(big.Int).SetString(strings.TrimPrefix(chainID, "eip155:"), 10)
		if w.celo {
			return json.Marshal(w.signCelo(&tx, chainID))
		}
		return json.Marshal(w.signDynamicFee(&tx, chainID))
	}
	return nil, errors.Errorf("unsupported method %s", call.Method)
}

func (w *fakeWallet) signDynamicFee(tx *Transaction, chainID *big.Int) string {
	to := common.HexToAddress(tx.To)
	signed, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     hexutil.MustDecodeUint64(tx.Nonce),
		GasTipCap: big.NewInt(1),
		GasFeeCap: hexutil.MustDecodeBig(tx.GasPrice),
		Gas:       hexutil.MustDecodeUint64(tx.GasLimit),
		To:        &to,
		Value:     hexutil.MustDecodeBig(tx.Value),
	}), types.LatestSignerForChainID(chainID), w.key)
	require.NoError(w.t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(w.t, err)
	return hexutil.Encode(raw)
}

func (w *fakeWallet) signCelo(tx *Transaction, chainID *big.Int) string {
	to := common.HexToAddress(tx.To)
	celo := &celoLegacyTx{
		Nonce:      hexutil.MustDecodeUint64(tx.Nonce),
		GasPrice:   hexutil.MustDecodeBig(tx.GasPrice),
		Gas:        hexutil.MustDecodeUint64(tx.GasLimit),
		GatewayFee: big.NewInt(0),
		To:         &to,
		Value:      hexutil.MustDecodeBig(tx.Value),
	}
	hash, err := celo.sigHash(chainID)
	require.NoError(w.t, err)
	sig, err := crypto.Sign(hash.Bytes(), w.key)
	require.NoError(w.t, err)
	celo.R = new(big.Int).SetBytes(sig[:32])
	celo.S = new(big.Int).SetBytes(sig[32:64])
	celo.V = new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35+int64(sig[64])))
	raw, err := rlp.EncodeToBytes(celo)
	require.NoError(w.t, err)
	return hexutil.Encode(raw)
}

type stubCaller struct {
	out []byte
	err error
}

func (s *stubCaller) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return s.out, s.err
}

func (s *stubCaller) Close() {}

func testEnv() *chain.Env {
	return &chain.Env{
		Now: func() time.Time { return time.UnixMilli(1700000000000) },
		Endpoints: map[string]string{
			"1":                    "http://rpc.invalid/1",
			CeloMainnetReference:   "http://rpc.invalid/42220",
			CeloAlfajoresReference: "http://rpc.invalid/44787",
		},
	}
}

func offlineAdaptor(t *testing.T, caller *stubCaller) *ChainAdaptor {
	return NewChainAdaptorWithOracle(&RPCOracle{Dial: func(ctx context.Context, rpcURL string) (ContractCaller, error) {
		if caller == nil {
			t.Fatalf("unexpected dial to %s", rpcURL)
		}
		return caller, nil
	}})
}

func run(t *testing.T, a *ChainAdaptor, label string, env *chain.Env, w chain.Requester, chainID, address string) (*chain.FormattedResult, error) {
	op, ok := a.Operations()[label]
	require.True(t, ok, "missing operation %s", label)
	account, err := chain.NewChainAccount(chainID, address)
	require.NoError(t, err)
	return op.Run(context.Background(), env, w, account)
}

func TestMessageSigningRoundTrip(t *testing.T) {
	for _, label := range []string{MethodPersonalSign, LabelEthSignStandard, LabelEthSignLegacy, MethodSignTypedData, MethodSignTypedDataV4} {
		t.Run(label, func(t *testing.T) {
			w := newFakeWallet(t)
			res, err := run(t, offlineAdaptor(t, nil), label, testEnv(), w, "eip155:1", strings.ToLower(w.address()))
			require.NoError(t, err)
			assert.True(t, res.Valid)
			assert.Equal(t, label, res.Method)
			assert.Equal(t, strings.ToLower(w.address()), res.Address)
			assert.Equal(t, 1, w.calls)

			sig := hexutil.MustDecode(res.Result)
			assert.Len(t, sig, 65)
		})
	}
}

func TestPersonalSignRecoversOriginator(t *testing.T) {
	w := newFakeWallet(t)
	res, err := run(t, offlineAdaptor(t, nil), MethodPersonalSign, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)

	var params []string
	require.NoError(t, w.last.DecodeParams(&params))
	assert.Equal(t, "My email is john@doe.com - 1700000000000", string(hexutil.MustDecode(params[0])))
	assert.Equal(t, w.address(), params[1])

	recovered, err := RecoverAddress(common.BytesToHash(accounts.TextHash(hexutil.MustDecode(params[0]))), hexutil.MustDecode(res.Result))
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(w.address(), recovered.Hex()))
}

func TestEthSignParamOrder(t *testing.T) {
	w := newFakeWallet(t)
	a := offlineAdaptor(t, nil)

	_, err := run(t, a, LabelEthSignStandard, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	var params []string
	require.NoError(t, w.last.DecodeParams(&params))
	assert.Equal(t, w.address(), params[0])

	_, err = run(t, a, LabelEthSignLegacy, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	require.NoError(t, w.last.DecodeParams(&params))
	assert.Equal(t, w.address(), params[1])
	assert.Equal(t, MethodEthSign, w.last.Method)
}

func TestMessageSignatureFallsBackToContractWallet(t *testing.T) {
	w := newFakeWallet(t)
	w.tamper = true

	res, err := run(t, offlineAdaptor(t, &stubCaller{out: common.RightPadBytes(erc1271Magic, 32)}), MethodPersonalSign, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = run(t, offlineAdaptor(t, &stubCaller{err: errors.New("execution reverted")}), MethodPersonalSign, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestMessageSigningRequiresEndpoint(t *testing.T) {
	w := newFakeWallet(t)
	_, err := run(t, offlineAdaptor(t, nil), MethodPersonalSign, testEnv(), w, "eip155:137", w.address())
	require.Error(t, err)
	assert.Equal(t, chain.MissingChainConfig, chain.KindOf(err))
}

func TestSendTransactionInsufficientFunds(t *testing.T) {
	w := newFakeWallet(t)
	env := testEnv()
	env.Directory = balances{strings.ToLower(w.address()): big.NewInt(1000)}

	res, err := run(t, offlineAdaptor(t, nil), MethodSendTransaction, env, w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.Equal(t, &chain.FormattedResult{
		Method:  MethodSendTransaction,
		Address: w.address(),
		Valid:   false,
		Result:  "Insufficient funds for intrinsic transaction cost",
	}, res)
	assert.Equal(t, 0, w.calls)
}

func TestSendTransaction(t *testing.T) {
	w := newFakeWallet(t)
	env := testEnv()
	env.Directory = balances{strings.ToLower(w.address()): new(big.Int).Mul(big.NewInt(defaultGasPrice), big.NewInt(defaultGasLimit))}

	res, err := run(t, offlineAdaptor(t, nil), MethodSendTransaction, env, w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, crypto.Keccak256Hash([]byte("tx")).Hex(), res.Result)
	assert.Equal(t, 1, w.calls)
}

func TestRecoveryRoutineBranches(t *testing.T) {
	assert.Equal(t, "celo-legacy", RecoveryRoutineFor("42220").Name)
	assert.Equal(t, "celo-legacy", RecoveryRoutineFor("44787").Name)
	for _, ref := range []string{"1", "5", "137", "42221", ""} {
		assert.Equal(t, "default", RecoveryRoutineFor(ref).Name, ref)
	}
}

func TestSignTransactionDefaultRoutine(t *testing.T) {
	w := newFakeWallet(t)
	res, err := run(t, offlineAdaptor(t, nil), MethodSignTransaction, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.True(t, res.Valid)

	w.celo = true
	res, err = run(t, offlineAdaptor(t, nil), MethodSignTransaction, testEnv(), w, "eip155:1", w.address())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestSignTransactionCeloRoutine(t *testing.T) {
	for _, ref := range []string{CeloMainnetReference, CeloAlfajoresReference} {
		t.Run(ref, func(t *testing.T) {
			w := newFakeWallet(t)
			w.celo = true
			res, err := run(t, offlineAdaptor(t, nil), MethodSignTransaction, testEnv(), w, "eip155:"+ref, w.address())
			require.NoError(t, err)
			assert.True(t, res.Valid)

			w.celo = false
			res, err = run(t, offlineAdaptor(t, nil), MethodSignTransaction, testEnv(), w, "eip155:"+ref, w.address())
			require.NoError(t, err)
			assert.False(t, res.Valid)
		})
	}
}

func TestSignTransactionWrongSigner(t *testing.T) {
	w := newFakeWallet(t)
	other := "0x000000000000000000000000000000000000dEaD"
	res, err := run(t, offlineAdaptor(t, nil), MethodSignTransaction, testEnv(), w, "eip155:1", other)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestMethodTable(t *testing.T) {
	a := offlineAdaptor(t, nil)
	assert.Equal(t, ChainName, a.Namespace())
	assert.Contains(t, a.Methods(), MethodPersonalSign)
	assert.Len(t, a.Operations(), 7)
	for label, op := range a.Operations() {
		assert.Contains(t, a.Methods(), op.RPCMethod(), label)
	}
}
