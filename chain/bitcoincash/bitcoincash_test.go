package bitcoincash

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

type fakeWallet struct {
	t        *testing.T
	key      *btcec.PrivateKey
	hashType txscript.SigHashType
	schnorr  bool
	mutate   bool
}

func newFakeWallet(t *testing.T) *fakeWallet {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return &fakeWallet{t: t, key: key, hashType: sigHashAllForkID}
}

func (w *fakeWallet) address() string {
	return Address{Prefix: MainnetPrefix, Version: versionP2PKH, Hash: btcutil.Hash160(w.key.PubKey().SerializeCompressed())}.String()
}

func (w *fakeWallet) signTransaction(params SignTransactionParams) SignTransactionResult {
	tx := wire.NewMsgTx(int32(params.Transaction.Version))
	tx.LockTime = params.Transaction.Locktime
	for _, in := range params.Transaction.Inputs {
		hash, err := chainhash.NewHash(reversed(in.OutpointTransactionHash))
		require.NoError(w.t, err)
		txIn := wire.NewTxIn(wire.NewOutPoint(hash, in.OutpointIndex), nil, nil)
		txIn.Sequence = in.SequenceNumber
		tx.AddTxIn(txIn)
	}
	for _, out := range params.Transaction.Outputs {
		value := out.ValueSatoshis.Int64()
		if w.mutate {
			value--
		}
		tx.AddTxOut(wire.NewTxOut(value, out.LockingBytecode))
	}
	prevOuts := map[wire.OutPoint]*wire.TxOut{}
	for i, src := range params.SourceOutputs {
		prevOuts[tx.TxIn[i].PreviousOutPoint] = wire.NewTxOut(src.ValueSatoshis.Int64(), src.LockingBytecode)
	}
	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewMultiPrevOutFetcher(prevOuts))
	for i, src := range params.SourceOutputs {
		var sig []byte
		if w.schnorr {
			sig = make([]byte, 64)
		} else {
			digest, err := txscript.CalcWitnessSigHash(src.LockingBytecode, sigHashes, sigHashAllForkID, tx, i, src.ValueSatoshis.Int64())
			require.NoError(w.t, err)
			sig = ecdsa.Sign(w.key, digest).Serialize()
		}
		sig = append(sig, byte(w.hashType))
		script, err := txscript.NewScriptBuilder().AddData(sig).AddData(w.key.PubKey().SerializeCompressed()).Script()
		require.NoError(w.t, err)
		tx.TxIn[i].SignatureScript = script
	}
	var buf bytes.Buffer
	require.NoError(w.t, tx.SerializeNoWitness(&buf))
	return SignTransactionResult{SignedTransaction: hex.EncodeToString(buf.Bytes()), SignedTransactionHash: tx.TxHash().String()}
}

func (w *fakeWallet) Request(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	switch call.Method {
	case MethodSignTransaction:
		var params SignTransactionParams
		require.NoError(w.t, call.DecodeParams(&params))
		return json.Marshal(w.signTransaction(params))
	case MethodSignMessage:
		var params SignMessageParams
		require.NoError(w.t, call.DecodeParams(&params))
		msg := params.Message
		if w.mutate {
			msg += "!"
		}
		sig := ecdsa.SignCompact(w.key, MessageHash(msg), true)
		return json.Marshal(base64.StdEncoding.EncodeToString(sig))
	}
	w.t.Fatalf("unexpected method %s", call.Method)
	return nil, nil
}

func run(t *testing.T, w *fakeWallet, label string) *chain.FormattedResult {
	now := time.UnixMilli(1700000000000)
	op := (&ChainAdaptor{}).Operations()[label]
	require.NotNil(t, op)
	res, err := op.Run(context.Background(), &chain.Env{Now: func() time.Time { return now }}, w, chain.ChainAccount{Namespace: ChainName, Reference: MainnetPrefix, Address: w.address()})
	require.NoError(t, err)
	return res
}

func TestSignTransaction(t *testing.T) {
	w := newFakeWallet(t)
	res := run(t, w, MethodSignTransaction)
	assert.True(t, res.Valid)
	assert.Len(t, res.Result, 64)
}

func TestSignTransactionRejections(t *testing.T) {
	t.Run("legacy sighash", func(t *testing.T) {
		w := newFakeWallet(t)
		w.hashType = txscript.SigHashAll
		assert.False(t, run(t, w, MethodSignTransaction).Valid)
	})
	t.Run("mutated outputs", func(t *testing.T) {
		w := newFakeWallet(t)
		w.mutate = true
		assert.False(t, run(t, w, MethodSignTransaction).Valid)
	})
}

func TestSchnorrDegradesToStructuralCheck(t *testing.T) {
	w := newFakeWallet(t)
	w.schnorr = true
	assert.True(t, run(t, w, MethodSignTransaction).Valid)
}

func TestPayloadCarriesSourceOutputs(t *testing.T) {
	w := newFakeWallet(t)
	req, err := buildTransaction(chain.ChainAccount{Namespace: ChainName, Reference: MainnetPrefix, Address: w.address()}, 1)
	require.NoError(t, err)
	b, err := extjson.Marshal(req.params)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"valueSatoshis":"<bigint: 10000n>"`)
	assert.Contains(t, string(b), `"unlockingBytecode":"<Uint8Array: 0x>"`)
	require.Len(t, req.params.SourceOutputs, 1)
	assert.True(t, txscript.IsPayToPubKeyHash(req.params.SourceOutputs[0].LockingBytecode))
}

func TestCovenantInputIsStructural(t *testing.T) {
	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, 0), []byte{0x51}, nil))
	src := SourceOutput{LockingBytecode: []byte{0xa9, 0x14}, Contract: &ContractInfo{RedeemScript: []byte{0x51}}}
	assert.True(t, verifyInput(tx, 0, src, nil))
	tx.TxIn[0].SignatureScript = nil
	assert.False(t, verifyInput(tx, 0, src, nil))
}

func TestSignMessage(t *testing.T) {
	w := newFakeWallet(t)
	assert.True(t, run(t, w, MethodSignMessage).Valid)
	w.mutate = true
	assert.False(t, run(t, w, MethodSignMessage).Valid)
}

func TestCashAddr(t *testing.T) {
	addr, err := DecodeAddress("bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", MainnetPrefix)
	require.NoError(t, err)
	assert.True(t, addr.IsP2PKH())
	assert.Equal(t, "76a04053bda0a88bda5177b86a15c3b29f559873", hex.EncodeToString(addr.Hash))
	assert.Equal(t, "bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", addr.String())

	bare, err := DecodeAddress("qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", MainnetPrefix)
	require.NoError(t, err)
	assert.Equal(t, addr, bare)

	_, err = DecodeAddress("bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6b", MainnetPrefix)
	assert.Error(t, err)
	_, err = DecodeAddress("qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", TestnetPrefix)
	assert.Error(t, err)
}
