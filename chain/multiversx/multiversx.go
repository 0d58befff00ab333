package multiversx

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "mvx"

const (
	MethodSignTransaction     = "mvx_signTransaction"
	MethodSignTransactions    = "mvx_signTransactions"
	MethodSignMessage         = "mvx_signMessage"
	MethodSignLoginToken      = "mvx_signLoginToken"
	MethodSignNativeAuthToken = "mvx_signNativeAuthToken"
	MethodCancelAction        = "mvx_cancelAction"

	addressHRP      = "erd"
	gasPrice        = 1000000000
	gasLimit        = 50000
	txVersion       = 1
	batchSize       = 3
	messagePrefix   = "\x17Elrond Signed Message:\n"
	dataTemplate    = "test transaction %d"
	messageTemplate = "This is a test message to be signed - %d"
)

var Methods = []string{
	MethodSignTransaction,
	MethodSignTransactions,
	MethodSignMessage,
	MethodSignLoginToken,
	MethodSignNativeAuthToken,
	MethodCancelAction,
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSignTransaction:  c.signTransaction(),
		MethodSignTransactions: c.signTransactions(),
		MethodSignMessage:      c.signMessage(),
	}
}

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*SignTransactionParams]{
		Method: MethodSignTransaction,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignTransactionParams, error) {
			tx, err := buildTransaction(account, uint64(env.Timestamp().UnixMilli()), 1)
			if err != nil {
				return nil, err
			}
			return &SignTransactionParams{Transaction: tx}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignTransactionParams, raw json.RawMessage) (chain.Verdict, error) {
			var res SignatureResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(VerifyTransaction(account.Address, params.Transaction, res.Signature), res.Signature), nil
		},
	}
}

func (c *ChainAdaptor) signTransactions() chain.Op {
	return &chain.Operation[*SignTransactionsParams]{
		Method: MethodSignTransactions,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignTransactionsParams, error) {
			params := &SignTransactionsParams{}
			nonce := uint64(env.Timestamp().UnixMilli())
			for i := 0; i < batchSize; i++ {
				tx, err := buildTransaction(account, nonce+uint64(i), int64(i+1))
				if err != nil {
					return nil, err
				}
				params.Transactions = append(params.Transactions, tx)
			}
			return params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignTransactionsParams, raw json.RawMessage) (chain.Verdict, error) {
			var res SignaturesResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			if len(res.Signatures) != len(params.Transactions) {
				return chain.Verified(false, fmt.Sprintf("expected %d signatures, got %d", len(params.Transactions), len(res.Signatures))), nil
			}
			verdicts := make([]bool, len(res.Signatures))
			sigs := make([]string, len(res.Signatures))
			for i, s := range res.Signatures {
				sigs[i] = s.Signature
				verdicts[i] = VerifyTransaction(account.Address, params.Transactions[i], s.Signature)
			}
			b, _ := json.Marshal(sigs)
			return chain.Verified(chain.AllValid(verdicts), string(b)), nil
		},
	}
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[*SignMessageParams]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignMessageParams, error) {
			if _, err := PublicKey(account.Address); err != nil {
				return nil, err
			}
			return &SignMessageParams{
				Address: account.Address,
				Message: fmt.Sprintf(messageTemplate, env.Timestamp().UnixMilli()),
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignMessageParams, raw json.RawMessage) (chain.Verdict, error) {
			var res SignatureResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(verify(account.Address, HashMessage(params.Message), res.Signature), res.Signature), nil
		},
	}
}

func buildTransaction(account chain.ChainAccount, nonce uint64, value int64) (*Transaction, error) {
	if _, err := PublicKey(account.Address); err != nil {
		return nil, err
	}
	return &Transaction{
		Nonce:    nonce,
		Value:    strconv.FormatInt(value, 10),
		Receiver: account.Address,
		Sender:   account.Address,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		Data:     base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(dataTemplate, nonce))),
		ChainID:  account.Reference,
		Version:  txVersion,
	}, nil
}

// SigningBytes is the canonical JSON a transaction signature covers.
func SigningBytes(tx *Transaction) ([]byte, error) {
	return json.Marshal(tx)
}

func HashMessage(message string) []byte {
	return crypto.Keccak256([]byte(messagePrefix + strconv.Itoa(len(message)) + message))
}

func VerifyTransaction(address string, tx *Transaction, sigHex string) bool {
	msg, err := SigningBytes(tx)
	if err != nil {
		return false
	}
	return verify(address, msg, sigHex)
}

func verify(address string, msg []byte, sigHex string) bool {
	pub, err := PublicKey(address)
	if err != nil {
		log.Warn("mvx address decode fail", "address", address, "err", err)
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

func PublicKey(address string) (ed25519.PublicKey, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mvx address")
	}
	if hrp != addressHRP {
		return nil, errors.Errorf("unexpected mvx address prefix %s", hrp)
	}
	pub, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mvx address payload")
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.Errorf("mvx address payload has %d bytes", len(pub))
	}
	return pub, nil
}

func EncodeAddress(pub ed25519.PublicKey) (string, error) {
	conv, err := bech32.ConvertBits(pub, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert address bits")
	}
	return bech32.Encode(addressHRP, conv)
}
