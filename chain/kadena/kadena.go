package kadena

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
)

const ChainName = "kadena"

const (
	MethodGetAccounts = "kadena_getAccounts_v1"
	MethodSign        = "kadena_sign_v1"
	MethodQuicksign   = "kadena_quicksign_v1"

	accountPrefix  = "k:"
	pactChainID    = "1"
	gasLimit       = 2500
	gasPrice       = 1.0e-8
	ttl            = 28800
	batchSize      = 3
	outcomeSuccess = "success"
)

var Methods = []string{
	MethodGetAccounts,
	MethodSign,
	MethodQuicksign,
}

type ChainAdaptor struct{}

func NewChainAdaptor(conf *config.Config) (chain.IChainAdaptor, error) {
	return &ChainAdaptor{}, nil
}

func (c *ChainAdaptor) Namespace() string { return ChainName }

func (c *ChainAdaptor) Methods() []string { return Methods }

func (c *ChainAdaptor) Operations() map[string]chain.Op {
	return map[string]chain.Op{
		MethodSign:      c.sign(),
		MethodQuicksign: c.quicksign(),
	}
}

func (c *ChainAdaptor) sign() chain.Op {
	return &chain.Operation[*SigningRequest]{
		Method: MethodSign,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*SigningRequest, error) {
			pub, err := PublicKey(account.Address)
			if err != nil {
				return nil, err
			}
			ts := env.Timestamp()
			return &SigningRequest{
				Code:          transferCode(account.Address, 1),
				Data:          map[string]any{},
				Caps:          transferCaps(account.Address, 1),
				Nonce:         fmt.Sprintf("kjs:nonce:%d", ts.UnixMilli()),
				ChainID:       pactChainID,
				GasLimit:      gasLimit,
				GasPrice:      gasPrice,
				Sender:        account.Address,
				TTL:           ttl,
				CreationTime:  ts.Unix(),
				NetworkID:     account.Reference,
				SigningPubKey: hex.EncodeToString(pub),
			}, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, req *SigningRequest, raw json.RawMessage) (chain.Verdict, error) {
			var res SignResponse
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			if res.Body == nil {
				return chain.Verdict{}, chain.Malformed("kadena sign result has no body")
			}
			var cmd Command
			if err := json.Unmarshal([]byte(res.Body.Cmd), &cmd); err != nil {
				return chain.Verdict{}, chain.Malformed("invalid kadena command: %v", err)
			}
			if cmd.Nonce != req.Nonce || cmd.NetworkID != req.NetworkID || cmd.Payload.Exec.Code != req.Code {
				log.Warn("kadena command differs from request", "nonce", cmd.Nonce, "network", cmd.NetworkID)
				return chain.Verified(false, res.Body.Hash), nil
			}
			if HashCommand(res.Body.Cmd) != res.Body.Hash {
				return chain.Verified(false, res.Body.Hash), nil
			}
			valid := false
			for _, s := range res.Body.Sigs {
				if s.Sig != nil && (s.PubKey == "" || s.PubKey == req.SigningPubKey) {
					valid = verifyCommand(req.SigningPubKey, res.Body.Cmd, *s.Sig)
					break
				}
			}
			return chain.Verified(valid, res.Body.Hash), nil
		},
	}
}

func (c *ChainAdaptor) quicksign() chain.Op {
	return &chain.Operation[*QuicksignParams]{
		Method: MethodQuicksign,
		Build: func(ctx context.Context, env *chain.Env, account chain.ChainAccount) (*QuicksignParams, error) {
			pub, err := PublicKey(account.Address)
			if err != nil {
				return nil, err
			}
			pubHex := hex.EncodeToString(pub)
			ts := env.Timestamp()
			params := &QuicksignParams{}
			for i := 0; i < batchSize; i++ {
				cmd := Command{
					NetworkID: account.Reference,
					Payload:   Payload{Exec: Exec{Code: transferCode(account.Address, i+1), Data: map[string]any{}}},
					Signers:   []Signer{{PubKey: pubHex, Clist: transferCaps(account.Address, i+1)}},
					Meta: Meta{
						ChainID:      pactChainID,
						CreationTime: ts.Unix(),
						GasLimit:     gasLimit,
						GasPrice:     gasPrice,
						Sender:       account.Address,
						TTL:          ttl,
					},
					Nonce: fmt.Sprintf("kjs:nonce:%d:%d", ts.UnixMilli(), i),
				}
				b, err := json.Marshal(cmd)
				if err != nil {
					return nil, errors.Wrap(err, "serialize kadena command")
				}
				params.CommandSigDatas = append(params.CommandSigDatas, CommandSigData{
					Cmd:  string(b),
					Sigs: []Sig{{PubKey: pubHex}},
				})
			}
			return params, nil
		},
		Verify: func(ctx context.Context, env *chain.Env, account chain.ChainAccount, params *QuicksignParams, raw json.RawMessage) (chain.Verdict, error) {
			var res QuicksignResult
			if err := chain.DecodeResult(raw, &res); err != nil {
				return chain.Verdict{}, err
			}
			if len(res.Responses) != len(params.CommandSigDatas) {
				return chain.Verified(false, fmt.Sprintf("expected %d responses, got %d", len(params.CommandSigDatas), len(res.Responses))), nil
			}
			verdicts := make([]bool, len(res.Responses))
			hashes := make([]string, len(res.Responses))
			for i, r := range res.Responses {
				sent := params.CommandSigDatas[i]
				hashes[i] = HashCommand(sent.Cmd)
				if r.Outcome.Result != outcomeSuccess || r.CommandSigData.Cmd != sent.Cmd {
					continue
				}
				pubHex := sent.Sigs[0].PubKey
				for _, s := range r.CommandSigData.Sigs {
					if s.PubKey == pubHex && s.Sig != nil {
						verdicts[i] = verifyCommand(pubHex, sent.Cmd, *s.Sig)
					}
				}
			}
			b, _ := json.Marshal(hashes)
			return chain.Verified(chain.AllValid(verdicts), string(b)), nil
		},
	}
}

func transferCode(account string, amount int) string {
	return fmt.Sprintf(`(coin.transfer "%s" "%s" %d.0)`, account, account, amount)
}

func transferCaps(account string, amount int) []Capability {
	return []Capability{
		{Name: "coin.GAS", Args: []any{}},
		{Name: "coin.TRANSFER", Args: []any{account, account, float64(amount)}},
	}
}

// HashCommand is the unpadded base64url blake2b-256 digest Pact uses as the
// command hash.
func HashCommand(cmd string) string {
	sum := blake2b.Sum256([]byte(cmd))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func verifyCommand(pubHex, cmd, sigHex string) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	sum := blake2b.Sum256([]byte(cmd))
	return ed25519.Verify(pub, sum[:], sig)
}

// PublicKey extracts the ed25519 key of a single-key "k:" account.
func PublicKey(account string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(account, accountPrefix) {
		return nil, errors.Errorf("unsupported kadena account %s", account)
	}
	pub, err := hex.DecodeString(strings.TrimPrefix(account, accountPrefix))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid kadena account key %s", account)
	}
	return pub, nil
}
