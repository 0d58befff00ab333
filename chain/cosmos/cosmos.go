package cosmos

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "cosmos"

const (
	MethodGetAccounts = "cosmos_getAccounts"
	MethodSignDirect  = "cosmos_signDirect"
	MethodSignAmino   = "cosmos_signAmino"

	secp256k1PubKeyType = "tendermint/PubKeySecp256k1"
	accountNumber       = 1
	gasLimit            = 200000
	feeDenom            = "ucosm"
	memoTemplate        = "Test signing - %d"
)

var Methods = []string{
	MethodGetAccounts,
	MethodSignDirect,
	MethodSignAmino,
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSignDirect: c.signDirect(),
		MethodSignAmino:  c.signAmino(),
	}
}

func (c *ChainAdaptor) signDirect() chain.Op {
	return &chain.Operation[*directDoc]{
		Method: MethodSignDirect,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*directDoc, error) {
			if _, _, err := bech32.Decode(account.Address); err != nil {
				return nil, errors.Wrap(err, "invalid cosmos address")
			}
			body := encodeTxBody(
				[][]byte{encodeMsgSend(account.Address, account.Address, Coin{Denom: feeDenom, Amount: "1"})},
				fmt.Sprintf(memoTemplate, env.Timestamp().UnixMilli()),
			)
			authInfo := encodeAuthInfo(Coin{Denom: feeDenom, Amount: "2000"}, gasLimit)
			return &directDoc{
				params: SignDirectParams{
					SignerAddress: account.Address,
					SignDoc: SignDoc{
						ChainID:       account.Reference,
						AccountNumber: strconv.Itoa(accountNumber),
						AuthInfoBytes: hex.EncodeToString(authInfo),
						BodyBytes:     hex.EncodeToString(body),
					},
				},
				signBytes: encodeSignDoc(body, authInfo, account.Reference, accountNumber),
			}, nil
		},
		Encode: func(account chain.ChainAccount, doc *directDoc) (any, error) {
			return &doc.params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, doc *directDoc, raw json.RawMessage) (chain.Verdict, error) {
			return verifyResponse(account.Address, doc.signBytes, raw)
		},
	}
}

func (c *ChainAdaptor) signAmino() chain.Op {
	return &chain.Operation[*SignAminoParams]{
		Method: MethodSignAmino,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SignAminoParams, error) {
			if _, _, err := bech32.Decode(account.Address); err != nil {
				return nil, errors.Wrap(err, "invalid cosmos address")
			}
			return &SignAminoParams{
				SignerAddress: account.Address,
				SignDoc: StdSignDoc{
					AccountNumber: strconv.Itoa(accountNumber),
					ChainID:       account.Reference,
					Fee: StdFee{
						Amount: []Coin{{Amount: "2000", Denom: feeDenom}},
						Gas:    strconv.Itoa(gasLimit),
					},
					Memo:     fmt.Sprintf(memoTemplate, env.Timestamp().UnixMilli()),
					Msgs:     []any{},
					Sequence: "0",
				},
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *SignAminoParams, raw json.RawMessage) (chain.Verdict, error) {
			signBytes, err := json.Marshal(params.SignDoc)
			if err != nil {
				return chain.Verdict{}, errors.Wrap(err, "serialize amino sign doc")
			}
			return verifyResponse(account.Address, signBytes, raw)
		},
	}
}

func verifyResponse(address string, signBytes []byte, raw json.RawMessage) (chain.Verdict, error) {
	var res SignResponse
	if err := chain.DecodeResult(raw, &res); err != nil {
		return chain.Verdict{}, err
	}
	if t := res.Signature.PubKey.Type; t != "" && t != secp256k1PubKeyType {
		return chain.Verified(false, fmt.Sprintf("unsupported public key type %s", t)), nil
	}
	pubKey, err := base64.StdEncoding.DecodeString(res.Signature.PubKey.Value)
	if err != nil {
		return chain.Verdict{}, chain.Malformed("invalid cosmos public key: %v", err)
	}
	sig, err := base64.StdEncoding.DecodeString(res.Signature.Signature)
	if err != nil {
		return chain.Verdict{}, chain.Malformed("invalid cosmos signature: %v", err)
	}
	valid, err := VerifySignature(address, pubKey, sig, signBytes)
	if err != nil {
		log.Warn("cosmos signature check fail", "address", address, "err", err)
		return chain.Verified(false, res.Signature.Signature), nil
	}
	return chain.Verified(valid, res.Signature.Signature), nil
}

// VerifySignature checks a 64-byte r||s secp256k1 signature over sha256(signBytes)
// and that pubKey derives the bech32 address under the address's own prefix.
func VerifySignature(address string, pubKey, sig, signBytes []byte) (bool, error) {
	if len(sig) != 64 {
		return false, errors.Errorf("signature must be 64 bytes, got %d", len(sig))
	}
	hrp, _, err := bech32.Decode(address)
	if err != nil {
		return false, errors.Wrap(err, "decode address")
	}
	derived, err := AddressFromPubKey(hrp, pubKey)
	if err != nil {
		return false, err
	}
	if derived != address {
		return false, nil
	}
	key, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false, errors.Wrap(err, "parse public key")
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:]) {
		return false, errors.New("signature scalar overflow")
	}
	hash := sha256.Sum256(signBytes)
	return ecdsa.NewSignature(&r, &s).Verify(hash[:], key), nil
}

func AddressFromPubKey(hrp string, pubKey []byte) (string, error) {
	conv, err := bech32.ConvertBits(btcutil.Hash160(pubKey), 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert address bits")
	}
	return bech32.Encode(hrp, conv)
}
