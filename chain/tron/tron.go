package tron

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cosmos/btcutil/base58"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "tron"

const (
	MethodSignTransaction = "tron_signTransaction"
	MethodSignMessage     = "tron_signMessage"

	MainnetFullHost = "https://api.trongrid.io"
	TestnetFullHost = "https://nile.trongrid.io"

	addressPrefix    = 0x41
	transferAmount   = 100000
	expirationWindow = 60000
	messagePrefix    = "\x19TRON Signed Message:\n"
	messageTemplate  = "This is a message to be signed for Tron - %d"
)

var Methods = []string{
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

func (c *ChainAdaptor) signTransaction() chain.Op {
	return &chain.Operation[*signRequest]{
		Method: MethodSignTransaction,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*signRequest, error) {
			owner, err := DecodeAddress(account.Address)
			if err != nil {
				return nil, err
			}
			fullHost := MainnetFullHost
			if env.Testnet {
				fullHost = TestnetFullHost
			}
			ts := env.Timestamp().UnixMilli()
			var seed [8]byte
			binary.BigEndian.PutUint64(seed[:], uint64(ts))
			ref := sha256.Sum256(seed[:])
			refBlockBytes, refBlockHash := ref[:2], ref[8:16]
			expiration := ts + expirationWindow

			raw := encodeTransfer(owner, owner, transferAmount, refBlockBytes, refBlockHash, expiration, ts)
			txID := sha256.Sum256(raw)
			tx := &Transaction{
				TxID: hex.EncodeToString(txID[:]),
				RawData: RawData{
					Contract: []Contract{{
						Parameter: ContractParameter{
							Value: TransferValue{
								Amount:       transferAmount,
								OwnerAddress: hex.EncodeToString(owner),
								ToAddress:    hex.EncodeToString(owner),
							},
							TypeURL: "type.googleapis.com/protocol.TransferContract",
						},
						Type: transferContractType,
					}},
					RefBlockBytes: hex.EncodeToString(refBlockBytes),
					RefBlockHash:  hex.EncodeToString(refBlockHash),
					Expiration:    expiration,
					Timestamp:     ts,
				},
				RawDataHex: hex.EncodeToString(raw),
			}
			log.Debug("built tron transaction", "fullHost", fullHost, "tx", spew.Sdump(tx))
			return &signRequest{
				params: SignTransactionParams{
					Address:     account.Address,
					FullHost:    fullHost,
					Transaction: TransactionEnvelope{Transaction: tx},
				},
				txID: txID[:],
			}, nil
		},
		Encode: func(account chain.ChainAccount, req *signRequest) (any, error) {
			return &req.params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, req *signRequest, raw json.RawMessage) (chain.Verdict, error) {
			sig, err := decodeSignature(raw)
			if err != nil {
				return chain.Verdict{}, err
			}
			valid, err := VerifyDigest(account.Address, req.txID, sig)
			if err != nil {
				log.Warn("tron transaction signature check fail", "address", account.Address, "err", err)
				return chain.Verified(false, hexutil.Encode(sig)), nil
			}
			return chain.Verified(valid, hexutil.Encode(sig)), nil
		},
	}
}

func (c *ChainAdaptor) signMessage() chain.Op {
	return &chain.Operation[*SignMessageParams]{
		Method: MethodSignMessage,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignMessageParams, error) {
			if _, err := DecodeAddress(account.Address); err != nil {
				return nil, err
			}
			return &SignMessageParams{
				Address: account.Address,
				Message: fmt.Sprintf(messageTemplate, env.Timestamp().UnixMilli()),
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignMessageParams, raw json.RawMessage) (chain.Verdict, error) {
			sig, err := decodeSignature(raw)
			if err != nil {
				return chain.Verdict{}, err
			}
			valid, err := VerifyDigest(account.Address, HashMessage(params.Message), sig)
			if err != nil {
				log.Warn("tron message signature check fail", "address", account.Address, "err", err)
				return chain.Verified(false, hexutil.Encode(sig)), nil
			}
			return chain.Verified(valid, hexutil.Encode(sig)), nil
		},
	}
}

func HashMessage(message string) []byte {
	return crypto.Keccak256([]byte(messagePrefix + strconv.Itoa(len(message)) + message))
}

// VerifyDigest recovers the signer of a 65-byte r||s||v signature and compares
// its base58check address against address.
func VerifyDigest(address string, digest, sig []byte) (bool, error) {
	if len(sig) != crypto.SignatureLength {
		return false, errors.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return false, errors.Wrap(err, "recover public key")
	}
	return EncodeAddress(crypto.PubkeyToAddress(*pub).Bytes()) == address, nil
}

func EncodeAddress(addr20 []byte) string {
	return base58.CheckEncode(addr20, addressPrefix)
}

// DecodeAddress returns the 21-byte 0x41-prefixed form of a base58check address.
func DecodeAddress(address string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tron address")
	}
	if version != addressPrefix || len(payload) != 20 {
		return nil, errors.Errorf("invalid tron address %s", address)
	}
	return append([]byte{addressPrefix}, payload...), nil
}

func decodeSignature(raw json.RawMessage) ([]byte, error) {
	var res SignatureResult
	if err := chain.DecodeResult(raw, &res); err != nil {
		return nil, err
	}
	var single string
	if err := json.Unmarshal(res.Signature, &single); err != nil {
		var list []string
		if err := json.Unmarshal(res.Signature, &list); err != nil || len(list) == 0 {
			return nil, chain.Malformed("tron result carries no signature")
		}
		single = list[0]
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(single, "0x"))
	if err != nil {
		return nil, chain.Malformed("invalid tron signature: %v", err)
	}
	return sig, nil
}
