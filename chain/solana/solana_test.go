package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/cosmos/btcutil/base58"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
)

const mainnetReference = "4sGjMW1sUnHzSxGspuhpqLDx6wiyjNtZ"

type fakeWallet struct {
	t       *testing.T
	key     solana.PrivateKey
	corrupt map[int]bool
	calls   int
}

func newFakeWallet(t *testing.T) *fakeWallet {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &fakeWallet{t: t, key: key, corrupt: map[int]bool{}}
}

func (w *fakeWallet) account() chain.ChainAccount {
	return chain.ChainAccount{Namespace: ChainName, Reference: mainnetReference, Address: w.key.PublicKey().String()}
}

func (w *fakeWallet) signTx(encoded string, corrupt bool) (*solana.Transaction, solana.Signature) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(w.t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(w.t, err)
	message, err := tx.Message.MarshalBinary()
	require.NoError(w.t, err)
	if corrupt {
		message = append(message, 0x01)
	}
	sig, err := w.key.Sign(message)
	require.NoError(w.t, err)
	tx.Signatures = []solana.Signature{sig}
	return tx, sig
}

func (w *fakeWallet) Request(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	w.calls++
	switch call.Method {
	case MethodSignTransaction, MethodSignAndSendTransaction:
		var params TransactionParams
		require.NoError(w.t, call.DecodeParams(&params))
		assert.Equal(w.t, w.key.PublicKey().String(), params.Pubkey)
		_, sig := w.signTx(params.Transaction, w.corrupt[0])
		return json.Marshal(SignatureResult{Signature: sig.String()})
	case MethodSignMessage:
		var params MessageParams
		require.NoError(w.t, call.DecodeParams(&params))
		msg := base58.Decode(params.Message)
		if w.corrupt[0] {
			msg = append(msg, '!')
		}
		sig, err := w.key.Sign(msg)
		require.NoError(w.t, err)
		return json.Marshal(SignatureResult{Signature: sig.String()})
	case MethodSignAllTransactions:
		var params AllTransactionsParams
		require.NoError(w.t, call.DecodeParams(&params))
		res := AllTransactionsResult{}
		for i, encoded := range params.Transactions {
			tx, _ := w.signTx(encoded, w.corrupt[i])
			b, err := tx.MarshalBinary()
			require.NoError(w.t, err)
			res.Transactions = append(res.Transactions, base64.StdEncoding.EncodeToString(b))
		}
		return json.Marshal(res)
	}
	w.t.Fatalf("unexpected method %s", call.Method)
	return nil, nil
}

func testEnv() *chain.Env {
	now := time.UnixMilli(1700000000000)
	return &chain.Env{Now: func() time.Time { return now }}
}

func run(t *testing.T, w *fakeWallet, label string) *chain.FormattedResult {
	op, ok := (&ChainAdaptor{}).Operations()[label]
	require.True(t, ok, label)
	res, err := op.Run(context.Background(), testEnv(), w, w.account())
	require.NoError(t, err)
	return res
}

func TestSingleSignatures(t *testing.T) {
	for _, label := range []string{MethodSignTransaction, MethodSignAndSendTransaction, MethodSignMessage} {
		t.Run(label, func(t *testing.T) {
			w := newFakeWallet(t)
			res := run(t, w, label)
			assert.True(t, res.Valid)
			assert.Equal(t, label, res.Method)
			assert.Equal(t, w.key.PublicKey().String(), res.Address)
			assert.Equal(t, 1, w.calls)

			bad := newFakeWallet(t)
			bad.corrupt[0] = true
			assert.False(t, run(t, bad, label).Valid)
		})
	}
}

func TestSignAllTransactionsFoldsVerdicts(t *testing.T) {
	w := newFakeWallet(t)
	res := run(t, w, MethodSignAllTransactions)
	assert.True(t, res.Valid)

	var signed []string
	require.NoError(t, json.Unmarshal([]byte(res.Result), &signed))
	assert.Len(t, signed, batchSize)

	w = newFakeWallet(t)
	w.corrupt[1] = true
	assert.False(t, run(t, w, MethodSignAllTransactions).Valid)
}

func TestSignAllTransactionsLengthMismatch(t *testing.T) {
	w := newFakeWallet(t)
	op := (&ChainAdaptor{}).Operations()[MethodSignAllTransactions]
	short := chain.RequesterFunc(func(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
		return json.Marshal(AllTransactionsResult{Transactions: []string{}})
	})
	res, err := op.Run(context.Background(), testEnv(), short, w.account())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestBuildTransferIsDeterministic(t *testing.T) {
	w := newFakeWallet(t)
	a, err := buildTransfer(w.account(), 42, transferAmount)
	require.NoError(t, err)
	b, err := buildTransfer(w.account(), 42, transferAmount)
	require.NoError(t, err)
	c, err := buildTransfer(w.account(), 43, transferAmount)
	require.NoError(t, err)
	assert.Equal(t, a.encoded, b.encoded)
	assert.NotEqual(t, a.encoded, c.encoded)
	assert.Equal(t, w.key.PublicKey(), a.tx.Message.AccountKeys[0])
}

func TestMalformedSignature(t *testing.T) {
	w := newFakeWallet(t)
	op := (&ChainAdaptor{}).Operations()[MethodSignMessage]
	garbage := chain.RequesterFunc(func(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
		return json.RawMessage(`{"signature":"0OIl"}`), nil
	})
	_, err := op.Run(context.Background(), testEnv(), garbage, w.account())
	require.Error(t, err)
	assert.Equal(t, chain.MalformedResult, chain.KindOf(err))
}

func TestInvalidAddress(t *testing.T) {
	op := (&ChainAdaptor{}).Operations()[MethodSignTransaction]
	_, err := op.Run(context.Background(), testEnv(), chain.RequesterFunc(nil), chain.ChainAccount{Namespace: ChainName, Reference: mainnetReference, Address: "not-base58!"})
	require.Error(t, err)
}
