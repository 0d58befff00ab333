package near

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

const ChainName = "near"

const (
	MethodSignIn                  = "near_signIn"
	MethodSignOut                 = "near_signOut"
	MethodGetAccounts             = "near_getAccounts"
	MethodSignTransaction         = "near_signTransaction"
	MethodSignAndSendTransaction  = "near_signAndSendTransaction"
	MethodSignTransactions        = "near_signTransactions"
	MethodSignAndSendTransactions = "near_signAndSendTransactions"

	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"

	batchSize = 3
)

var Methods = []string{
	MethodSignIn,
	MethodSignOut,
	MethodGetAccounts,
	MethodSignTransaction,
	MethodSignAndSendTransaction,
	MethodSignTransactions,
	MethodSignAndSendTransactions,
}

// oneYocto is the nominal deposit of every built transfer.
var oneYocto = big.NewInt(1)

type SignTransactionParams struct {
	NetworkID   string        `json:"networkId"`
	Transaction extjson.Bytes `json:"transaction"`
}

type SignTransactionsParams struct {
	NetworkID    string          `json:"networkId"`
	Transactions []extjson.Bytes `json:"transactions"`
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
	}
}

func networkID(env *chain.Env) string {
	if env != nil && env.Testnet {
		return NetworkTestnet
	}
	return NetworkMainnet
}

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*SignTransactionParams]{
		Method: MethodSignTransaction,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignTransactionParams, error) {
			raw, err := buildTransfer(account, env.Timestamp().UnixMilli(), oneYocto)
			if err != nil {
				return nil, err
			}
			return &SignTransactionParams{NetworkID: networkID(env), Transaction: raw}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignTransactionParams, raw json.RawMessage) (chain.Verdict, error) {
			var signed extjson.Bytes
			if err := chain.DecodeResult(raw, &signed); err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(verifySigned(account.Address, params.Transaction, signed), signed.Hex()), nil
		},
	}
}

func (c *ChainAdaptor) signTransactions() chain.Op {
	return &chain.Operation[*SignTransactionsParams]{
		Method: MethodSignTransactions,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignTransactionsParams, error) {
			params := &SignTransactionsParams{NetworkID: networkID(env)}
			for i := 0; i < batchSize; i++ {
				raw, err := buildTransfer(account, env.Timestamp().UnixMilli()+int64(i), big.NewInt(int64(i+1)))
				if err != nil {
					return nil, err
				}
				params.Transactions = append(params.Transactions, raw)
			}
			return params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignTransactionsParams, raw json.RawMessage) (chain.Verdict, error) {
			var signed []extjson.Bytes
			if err := chain.DecodeResult(raw, &signed); err != nil {
				return chain.Verdict{}, err
			}
			if len(signed) != len(params.Transactions) {
				return chain.Verified(false, fmt.Sprintf("expected %d signed transactions, got %d", len(params.Transactions), len(signed))), nil
			}
			verdicts := make([]bool, len(signed))
			for i := range signed {
				verdicts[i] = verifySigned(account.Address, params.Transactions[i], signed[i])
			}
			b, _ := extjson.Marshal(signed)
			return chain.Verified(chain.AllValid(verdicts), string(b)), nil
		},
	}
}

func buildTransfer(account chain.ChainAccount, nonce int64, deposit *big.Int) (extjson.Bytes, error) {
	pub, err := PublicKey(account.Address)
	if err != nil {
		return nil, err
	}
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(nonce))
	transfer, err := NewTransfer(deposit)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		SignerID:   account.Address,
		PublicKey:  PublicKeyED25519{KeyType: keyTypeED25519},
		Nonce:      uint64(nonce),
		ReceiverID: account.Address,
		BlockHash:  sha256.Sum256(seed[:]),
		Actions:    []Action{transfer},
	}
	copy(tx.PublicKey.Data[:], pub)
	return tx.Serialize()
}

// verifySigned checks that signed is the sent transaction followed by an
// ed25519 signature over its sha256 digest.
func verifySigned(address string, sent, signed []byte) bool {
	txBytes, sig, err := SplitSignedTransaction(signed, len(sent))
	if err != nil {
		log.Warn("near signed transaction rejected", "address", address, "err", err)
		return false
	}
	if !bytes.Equal(txBytes, sent) {
		return false
	}
	pub, err := PublicKey(address)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(txBytes)
	return ed25519.Verify(pub, digest[:], sig)
}

// PublicKey decodes an implicit account id, the hex form of its ed25519 key.
func PublicKey(address string) (ed25519.PublicKey, error) {
	pub, err := hex.DecodeString(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, errors.Errorf("near account %s is not an implicit account", address)
	}
	return pub, nil
}
