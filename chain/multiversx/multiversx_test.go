package multiversx

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
)

type fakeWallet struct {
	t       *testing.T
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	corrupt map[int]bool
}

func newFakeWallet(t *testing.T) *fakeWallet {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &fakeWallet{t: t, pub: pub, priv: priv, corrupt: map[int]bool{}}
}

func (w *fakeWallet) account() chain.ChainAccount {
	addr, err := EncodeAddress(w.pub)
	require.NoError(w.t, err)
	return chain.ChainAccount{Namespace: ChainName, Reference: "D", Address: addr}
}

func (w *fakeWallet) sign(msg []byte, corrupt bool) SignatureResult {
	sig := ed25519.Sign(w.priv, msg)
	if corrupt {
		sig[0] ^= 0x80
	}
	return SignatureResult{Signature: hex.EncodeToString(sig)}
}

func (w *fakeWallet) Request(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	switch call.Method {
	case MethodSignTransaction:
		var params SignTransactionParams
		require.NoError(w.t, call.DecodeParams(&params))
		msg, err := SigningBytes(params.Transaction)
		require.NoError(w.t, err)
		return json.Marshal(w.sign(msg, w.corrupt[0]))
	case MethodSignTransactions:
		var params SignTransactionsParams
		require.NoError(w.t, call.DecodeParams(&params))
		res := SignaturesResult{}
		for i, tx := range params.Transactions {
			msg, err := SigningBytes(tx)
			require.NoError(w.t, err)
			res.Signatures = append(res.Signatures, w.sign(msg, w.corrupt[i]))
		}
		return json.Marshal(res)
	case MethodSignMessage:
		var params SignMessageParams
		require.NoError(w.t, call.DecodeParams(&params))
		return json.Marshal(w.sign(HashMessage(params.Message), w.corrupt[0]))
	}
	w.t.Fatalf("unexpected method %s", call.Method)
	return nil, nil
}

func run(t *testing.T, w *fakeWallet, label string) *chain.FormattedResult {
	now := time.UnixMilli(1700000000000)
	op := (&ChainAdaptor{}).Operations()[label]
	require.NotNil(t, op)
	res, err := op.Run(context.Background(), &chain.Env{Now: func() time.Time { return now }}, w, w.account())
	require.NoError(t, err)
	return res
}

func TestSingleSignatures(t *testing.T) {
	for _, label := range []string{MethodSignTransaction, MethodSignMessage} {
		t.Run(label, func(t *testing.T) {
			w := newFakeWallet(t)
			assert.True(t, run(t, w, label).Valid)
			w.corrupt[0] = true
			assert.False(t, run(t, w, label).Valid)
		})
	}
}

func TestSignTransactionsFoldsVerdicts(t *testing.T) {
	w := newFakeWallet(t)
	assert.True(t, run(t, w, MethodSignTransactions).Valid)

	w.corrupt[1] = true
	assert.False(t, run(t, w, MethodSignTransactions).Valid)
}

func TestCanonicalSigningBytes(t *testing.T) {
	b, err := SigningBytes(&Transaction{Nonce: 7, Value: "1", Receiver: "erd1r", Sender: "erd1s", GasPrice: 1, GasLimit: 2, ChainID: "D", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"nonce":7,"value":"1","receiver":"erd1r","sender":"erd1s","gasPrice":1,"gasLimit":2,"chainID":"D","version":1}`, string(b))
}

func TestAddressCodec(t *testing.T) {
	w := newFakeWallet(t)
	addr := w.account().Address
	assert.Regexp(t, `^erd1`, addr)
	pub, err := PublicKey(addr)
	require.NoError(t, err)
	assert.Equal(t, w.pub, pub)

	_, err = PublicKey("cosmos1qqqsyqcyq5rqwzqfpg9scrgwpugpzysn3gvkmp")
	assert.Error(t, err)
}
