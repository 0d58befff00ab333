package bitcoincash

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

const ChainName = "bch"

const (
	MethodGetAddresses    = "bch_getAddresses"
	MethodSignTransaction = "bch_signTransaction"
	MethodSignMessage     = "bch_signMessage"

	// SigHashForkID marks the replay-protected digest every signature must commit to.
	SigHashForkID = 0x40

	sigHashAllForkID = txscript.SigHashAll | SigHashForkID
	inputValue       = 10000
	outputValue      = 9000
	txVersion        = 2
	messageMagic     = "Bitcoin Signed Message:\n"
	promptTemplate   = "Sign BCH transaction %d"
	messageTemplate  = "This is a message to be signed for BCH - %d"
)

var Methods = []string{
	MethodGetAddresses,
	MethodSignTransaction,
	MethodSignMessage,
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSignTransaction: c.signTransaction(),
		MethodSignMessage:     c.signMessage(),
	}
}

type signRequest struct {
	params   SignTransactionParams
	unsigned *wire.MsgTx
}

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*signRequest]{
		Method: MethodSignTransaction,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*signRequest, error) {
			return buildTransaction(account, env.Timestamp().UnixMilli())
		},
		Encode: func(account chain.ChainAccount, req *signRequest) (any, error) {
			return &req.params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, req *signRequest, raw json.RawMessage) (chain.Verdict, error) {
			var res SignTransactionResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			signedBytes, err := hex.DecodeString(res.SignedTransaction)
			if err != nil {
				return chain.Verdict{}, chain.Malformed("invalid signed transaction hex: %v", err)
			}
			signed := wire.NewMsgTx(txVersion)
			if err := signed.DeserializeNoWitness(bytes.NewReader(signedBytes)); err != nil {
				return chain.Verdict{}, chain.Malformed("invalid signed transaction: %v", err)
			}
			result := res.SignedTransactionHash
			if result == "" {
				result = signed.TxHash().String()
			}
			return chain.Verified(VerifyTransaction(req.unsigned, signed, req.params.SourceOutputs), result), nil
		},
	}
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[*SignMessageParams]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignMessageParams, error) {
			if _, err := DecodeAddress(account.Address, account.Reference); err != nil {
				return nil, err
			}
			ts := env.Timestamp().UnixMilli()
			return &SignMessageParams{
				Address:    account.Address,
				Message:    fmt.Sprintf(messageTemplate, ts),
				UserPrompt: "Sign message",
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignMessageParams, raw json.RawMessage) (chain.Verdict, error) {
			var sig string
			if err := chain.DecodeResult(raw, &sig); err != nil {
				return chain.Verdict{}, err
			}
			valid, err := VerifyMessage(account.Address, account.Reference, params.Message, sig)
			if err != nil {
				log.Warn("bch message signature check fail", "address", account.Address, "err", err)
				return chain.Verified(false, sig), nil
			}
			return chain.Verified(valid, sig), nil
		},
	}
}

func p2pkhScript(hash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// buildTransaction spends one pseudo-random P2PKH outpoint back to the sender.
func buildTransaction(account chain.ChainAccount, nonce int64) (*signRequest, error) {
	addr, err := DecodeAddress(account.Address, account.Reference)
	if err != nil {
		return nil, err
	}
	if !addr.IsP2PKH() {
		return nil, errors.Errorf("bch address %s is not pay-to-pubkey-hash", account.Address)
	}
	lockingScript, err := p2pkhScript(addr.Hash)
	if err != nil {
		return nil, errors.Wrap(err, "build locking script")
	}
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(nonce))
	prevHash := chainhash.Hash(sha256.Sum256(seed[:]))

	rawTx := wire.NewMsgTx(txVersion)
	rawTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	rawTx.AddTxOut(wire.NewTxOut(outputValue, lockingScript))

	input := Input{
		OutpointIndex:           0,
		OutpointTransactionHash: reversed(prevHash[:]),
		SequenceNumber:          wire.MaxTxInSequenceNum,
		UnlockingBytecode:       extjson.Bytes{},
	}
	return &signRequest{
		params: SignTransactionParams{
			Transaction: Transaction{
				Inputs:   []Input{input},
				Locktime: 0,
				Outputs: []Output{{
					LockingBytecode: lockingScript,
					ValueSatoshis:   extjson.BigIntFromUint64(outputValue),
				}},
				Version: txVersion,
			},
			SourceOutputs: []SourceOutput{{
				Input:           input,
				LockingBytecode: lockingScript,
				ValueSatoshis:   extjson.BigIntFromUint64(inputValue),
			}},
			Broadcast:  false,
			UserPrompt: fmt.Sprintf(promptTemplate, nonce),
		},
		unsigned: rawTx,
	}, nil
}

func skeleton(tx *wire.MsgTx) []byte {
	cp := tx.Copy()
	for _, in := range cp.TxIn {
		in.SignatureScript = nil
		in.Witness = nil
	}
	var buf bytes.Buffer
	_ = cp.SerializeNoWitness(&buf)
	return buf.Bytes()
}

// VerifyTransaction checks that signed is unsigned with unlocking data added and
// that every input's unlocking data satisfies its source output.
func VerifyTransaction(unsigned, signed *wire.MsgTx, sources []SourceOutput) bool {
	if !bytes.Equal(skeleton(unsigned), skeleton(signed)) {
		log.Warn("signed bch transaction differs from request")
		return false
	}
	if len(sources) != len(signed.TxIn) {
		return false
	}
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(sources))
	for i, in := range signed.TxIn {
		prevOuts[in.PreviousOutPoint] = wire.NewTxOut(sources[i].ValueSatoshis.Int64(), sources[i].LockingBytecode)
	}
	sigHashes := txscript.NewTxSigHashes(signed, txscript.NewMultiPrevOutFetcher(prevOuts))
	verdicts := make([]bool, len(signed.TxIn))
	for i := range signed.TxIn {
		verdicts[i] = verifyInput(signed, i, sources[i], sigHashes)
	}
	return chain.AllValid(verdicts)
}

func verifyInput(tx *wire.MsgTx, idx int, source SourceOutput, sigHashes *txscript.TxSigHashes) bool {
	unlocking := tx.TxIn[idx].SignatureScript
	locking := []byte(source.LockingBytecode)
	if source.Contract != nil || !txscript.IsPayToPubKeyHash(locking) {
		// No interpreter for covenant scripts: accept any non-empty unlocking data.
		log.Debug("bch input checked structurally", "index", idx)
		return len(unlocking) > 0
	}
	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, unlocking)
	for tokenizer.Next() {
		pushes = append(pushes, tokenizer.Data())
	}
	if tokenizer.Err() != nil || len(pushes) != 2 {
		return false
	}
	sig, pub := pushes[0], pushes[1]
	if len(sig) < 2 || !bytes.Equal(btcutil.Hash160(pub), locking[3:23]) {
		return false
	}
	hashType := txscript.SigHashType(sig[len(sig)-1])
	if hashType != sigHashAllForkID {
		return false
	}
	der := sig[:len(sig)-1]
	if len(der) == 64 {
		log.Debug("bch schnorr signature checked structurally", "index", idx)
		return true
	}
	signature, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	key, err := btcec.ParsePubKey(pub)
	if err != nil {
		return false
	}
	digest, err := txscript.CalcWitnessSigHash(locking, sigHashes, hashType, tx, idx, source.ValueSatoshis.Int64())
	if err != nil {
		log.Warn("calc bch sighash fail", "index", idx, "err", err)
		return false
	}
	return signature.Verify(digest, key)
}

// MessageHash is the double-sha256 of the magic-prefixed message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, messageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}

func VerifyMessage(address, defaultPrefix, message, signature string) (bool, error) {
	addr, err := DecodeAddress(address, defaultPrefix)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, errors.Wrap(err, "decode signature")
	}
	pub, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return false, errors.Wrap(err, "recover public key")
	}
	serialized := pub.SerializeUncompressed()
	if compressed {
		serialized = pub.SerializeCompressed()
	}
	return bytes.Equal(btcutil.Hash160(serialized), addr.Hash), nil
}
