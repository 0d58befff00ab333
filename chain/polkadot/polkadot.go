package polkadot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/crypto/blake2b"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "polkadot"

const (
	MethodSignTransaction = "polkadot_signTransaction"
	MethodSignMessage     = "polkadot_signMessage"

	specVersion        = 9430
	transactionVersion = 24
	transferAmount     = 1000000000
	messageTemplate    = "This is an example message to be signed - %d"

	sr25519SignatureType = 0x01
	maxUnhashedPayload   = 256
)

var Methods = []string{
	MethodSignTransaction,
	MethodSignMessage,
}

// balancesTransferKeepAlive is the call index of balances.transferKeepAlive.
var balancesTransferKeepAlive = []byte{0x05, 0x03}

var immortalEra = []byte{0x00}

type TransactionPayload struct {
	Address            string   `json:"address"`
	BlockHash          string   `json:"blockHash"`
	BlockNumber        string   `json:"blockNumber"`
	Era                string   `json:"era"`
	GenesisHash        string   `json:"genesisHash"`
	Method             string   `json:"method"`
	Nonce              string   `json:"nonce"`
	SpecVersion        string   `json:"specVersion"`
	Tip                string   `json:"tip"`
	TransactionVersion string   `json:"transactionVersion"`
	Version            int      `json:"version"`
}

type SignTransactionParams struct {
	Address            string              `json:"address"`
	TransactionPayload *TransactionPayload `json:"transactionPayload"`
}

type SignMessageParams struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type SignatureResult struct {
	ID        int    `json:"id,omitempty"`
	Signature string `json:"signature"`
}

type transactionRequest struct {
	params  SignTransactionParams
	signing []byte
}

type ChainAdaptor struct {
	backend *Backend
}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{backend: defaultBackend}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSignTransaction: c.signTransaction(),
		MethodSignMessage:     c.signMessage(),
	}
}

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*transactionRequest]{
		Method: MethodSignTransaction,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*transactionRequest, error) {
			_, pub, err := DecodeAddress(account.Address)
			if err != nil {
				return nil, err
			}
			ts := env.Timestamp().UnixMilli()
			var seed [8]byte
			binary.BigEndian.PutUint64(seed[:], uint64(ts))
			method := append([]byte{}, balancesTransferKeepAlive...)
			method = append(method, 0x00)
			method = append(method, pub[:]...)
			if method, err = appendCompact(method, big.NewInt(transferAmount)); err != nil {
				return nil, err
			}
			payload := &SigningPayload{
				Method:             method,
				Era:                immortalEra,
				Nonce:              0,
				Tip:                new(big.Int),
				SpecVersion:        specVersion,
				TransactionVersion: transactionVersion,
				GenesisHash:        blake2b.Sum256([]byte(account.Reference)),
				BlockHash:          blake2b.Sum256(seed[:]),
			}
			signing, err := payload.Encode()
			if err != nil {
				return nil, err
			}
			if len(signing) > maxUnhashedPayload {
				sum := blake2b.Sum256(signing)
				signing = sum[:]
			}
			return &transactionRequest{
				params: SignTransactionParams{
					Address: account.Address,
					TransactionPayload: &TransactionPayload{
						Address:            account.Address,
						BlockHash:          hexutil.Encode(payload.BlockHash[:]),
						BlockNumber:        "0x00000000",
						Era:                hexutil.Encode(payload.Era),
						GenesisHash:        hexutil.Encode(payload.GenesisHash[:]),
						Method:             hexutil.Encode(payload.Method),
						Nonce:              "0x00000000",
						SpecVersion:        fmt.Sprintf("0x%08x", specVersion),
						Tip:                "0x00000000000000000000000000000000",
						TransactionVersion: fmt.Sprintf("0x%08x", transactionVersion),
						Version:            4,
					},
				},
				signing: signing,
			}, nil
		},
		Encode: func(account chain.ChainAccount, req *transactionRequest) (any, error) {
			return &req.params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, req *transactionRequest, raw json.RawMessage) (chain.Verdict, error) {
			var res SignatureResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			valid, err := c.verify(ctx, account.Address, res.Signature, req.signing)
			if err != nil {
				return chain.Verdict{}, err
			}
			return chain.Verified(valid, res.Signature), nil
		},
	}
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[*SignMessageParams]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignMessageParams, error) {
			if _, _, err := DecodeAddress(account.Address); err != nil {
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
			valid, err := c.verify(ctx, account.Address, res.Signature, WrapBytes(params.Message))
			if err != nil {
				return chain.Verdict{}, err
			}
			if !valid {
				// Some signers sign the raw message without the <Bytes> wrapper.
				if valid, err = c.verify(ctx, account.Address, res.Signature, []byte(params.Message)); err != nil {
					return chain.Verdict{}, err
				}
			}
			return chain.Verified(valid, res.Signature), nil
		},
	}
}

func (c *ChainAdaptor) verify(ctx context.Context, address, signature string, msg []byte) (bool, error) {
	_, pub, err := DecodeAddress(address)
	if err != nil {
		return false, err
	}
	raw, err := hexutil.Decode(signature)
	if err != nil {
		return false, chain.Malformed("invalid polkadot signature: %v", err)
	}
	if len(raw) == 65 && raw[0] == sr25519SignatureType {
		raw = raw[1:]
	}
	if len(raw) != 64 {
		log.Warn("unexpected polkadot signature length", "len", len(raw))
		return false, nil
	}
	var sig [64]byte
	copy(sig[:], raw)
	return c.backend.Verify(ctx, pub, msg, sig)
}

// WrapBytes applies the <Bytes> envelope signers put around raw messages.
func WrapBytes(message string) []byte {
	if strings.HasPrefix(message, "<Bytes>") && strings.HasSuffix(message, "</Bytes>") {
		return []byte(message)
	}
	return []byte("<Bytes>" + message + "</Bytes>")
}
