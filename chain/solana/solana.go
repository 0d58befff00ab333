package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cosmos/btcutil/base58"
	"github.com/ethereum/go-ethereum/log"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "solana"

const (
	MethodSignTransaction        = "solana_signTransaction"
	MethodSignMessage            = "solana_signMessage"
	MethodSignAllTransactions    = "solana_signAllTransactions"
	MethodSignAndSendTransaction = "solana_signAndSendTransaction"
	MethodGetAccounts            = "solana_getAccounts"
	MethodRequestAccounts        = "solana_requestAccounts"

	batchSize       = 3
	transferAmount  = 123
	messageTemplate = "This is an example message to be signed - %d"
)

var Methods = []string{
	MethodSignTransaction,
	MethodSignMessage,
	MethodSignAllTransactions,
	MethodSignAndSendTransaction,
	MethodGetAccounts,
	MethodRequestAccounts,
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSignTransaction:        c.signTransaction(MethodSignTransaction),
		MethodSignAndSendTransaction: c.signTransaction(MethodSignAndSendTransaction),
		MethodSignMessage:            c.signMessage(),
		MethodSignAllTransactions:    c.signAllTransactions(),
	}
}

func (c *ChainAdaptor) signTransaction(method string) chain.Op {
	return &chain.Operation[*unsignedTx]{
		Method: method,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*unsignedTx, error) {
			return buildTransfer(account, env.Timestamp().UnixMilli(), transferAmount)
		},
		Encode: func(account chain.ChainAccount, tx *unsignedTx) (any, error) {
			return &TransactionParams{Pubkey: account.Address, Transaction: tx.encoded}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, tx *unsignedTx, raw json.RawMessage) (chain.Verdict, error) {
			var res SignatureResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			valid, err := verifySignature(account.Address, res.Signature, tx.message)
			if err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(valid, res.Signature), nil
		},
	}
}

type testMessage struct {
	text []byte
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[testMessage]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (testMessage, error) {
			if _, err := solana.PublicKeyFromBase58(account.Address); err != nil {
				return testMessage{}, errors.Wrap(err, "invalid solana address")
			}
			return testMessage{text: []byte(fmt.Sprintf(messageTemplate, env.Timestamp().UnixMilli()))}, nil
		},
		Encode: func(account chain.ChainAccount, m testMessage) (any, error) {
			return &MessageParams{Pubkey: account.Address, Message: base58.Encode(m.text)}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, m testMessage, raw json.RawMessage) (chain.Verdict, error) {
			var res SignatureResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			valid, err := verifySignature(account.Address, res.Signature, m.text)
			if err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(valid, res.Signature), nil
		},
	}
}

func (c *ChainAdaptor) signAllTransactions() chain.Op {
	return &chain.Operation[[]*unsignedTx]{
		Method: MethodSignAllTransactions,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) ([]*unsignedTx, error) {
			txs := make([]*unsignedTx, 0, batchSize)
			for i := 0; i < batchSize; i++ {
				tx, err := buildTransfer(account, env.Timestamp().UnixMilli()+int64(i), transferAmount+uint64(i))
				if err != nil {
					return nil, err
				}
				txs = append(txs, tx)
			}
			return txs, nil
		},
		Encode: func(account chain.ChainAccount, txs []*unsignedTx) (any, error) {
			params := &AllTransactionsParams{}
			for _, tx := range txs {
				params.Transactions = append(params.Transactions, tx.encoded)
			}
			return params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, txs []*unsignedTx, raw json.RawMessage) (chain.Verdict, error) {
			var res AllTransactionsResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			if len(res.Transactions) != len(txs) {
				return chain.Verified(false, fmt.Sprintf("expected %d signed transactions, got %d", len(txs), len(res.Transactions))), nil
			}
			pubkey, err := solana.PublicKeyFromBase58(account.Address)
			if err != nil {
				return chain.Verdict{}, errors.Wrap(err, "invalid solana address")
			}
			verdicts := make([]bool, len(txs))
			for i, encoded := range res.Transactions {
				verdicts[i] = verifySignedTransaction(pubkey, encoded, txs[i].message)
			}
			b, _ := json.Marshal(res.Transactions)
			return chain.Verified(chain.AllValid(verdicts), string(b)), nil
		},
	}
}

// buildTransfer builds a self-transfer whose recent blockhash is derived from
// nonce, so repeated requests never carry identical messages.
func buildTransfer(account chain.ChainAccount, nonce int64, lamports uint64) (*unsignedTx, error) {
	owner, err := solana.PublicKeyFromBase58(account.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid solana address")
	}
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(nonce))
	blockhash := solana.Hash(sha256.Sum256(append([]byte(account.Reference), seed[:]...)))

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, owner, owner).Build(),
		},
		blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build transfer transaction")
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serialize transaction message")
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "serialize transaction")
	}
	return &unsignedTx{tx: tx, message: message, encoded: base64.StdEncoding.EncodeToString(serialized)}, nil
}

func verifySignature(address, signature string, message []byte) (bool, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, errors.Wrap(err, "invalid solana address")
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, chain.Malformed("invalid solana signature: %v", err)
	}
	return sig.Verify(pubkey, message), nil
}

// verifySignedTransaction checks that a returned transaction still carries the
// requested message and that the fee payer's signature covers it.
func verifySignedTransaction(pubkey solana.PublicKey, encoded string, message []byte) bool {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		log.Warn("decode signed solana transaction fail", "err", err)
		return false
	}
	got, err := tx.Message.MarshalBinary()
	if err != nil || string(got) != string(message) || len(tx.Signatures) == 0 {
		return false
	}
	return tx.Signatures[0].Verify(pubkey, message)
}
