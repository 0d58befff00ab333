package chain

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/status-im/keycard-go/hexutils"
)

// Op is one named entry of a namespace's operation table.
type Op interface {
	Label() string
	RPCMethod() string
	Run(ctx context.Context, env *Env, req Requester, account ChainAccount) (*FormattedResult, error)
}

// Operation runs build, admit, request and verify strictly in that order for a
// payload of type P. The payload the verifier sees is the one that was sent.
type Operation[P any] struct {
	// Method is the canonical RPC method name.
	Method string
	// Name overrides the reported method when one RPC method has several presentations.
	Name string

	Build  func(ctx context.Context, env *Env, account ChainAccount) (P, error)
	Encode func(account ChainAccount, payload P) (any, error)
	Admit  func(ctx context.Context, env *Env, account ChainAccount, payload P) (string, bool)
	Verify func(ctx context.Context, env *Env, account ChainAccount, payload P, raw json.RawMessage) (Verdict, error)
}

func (o *Operation[P]) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Method
}

func (o *Operation[P]) RPCMethod() string {
	return o.Method
}

func (o *Operation[P]) Run(ctx context.Context, env *Env, req Requester, account ChainAccount) (*FormattedResult, error) {
	payload, err := o.Build(ctx, env, account)
	if err != nil {
		return nil, err
	}
	if o.Admit != nil {
		if cause, ok := o.Admit(ctx, env, account, payload); !ok {
			log.Warn("request refused before dispatch", "method", o.Label(), "address", account.Address, "cause", cause)
			return Rejected(o.Label(), account.Address, cause), nil
		}
	}
	var params any = payload
	if o.Encode != nil {
		if params, err = o.Encode(account, payload); err != nil {
			return nil, err
		}
	}
	if b, err := json.Marshal(params); err == nil {
		log.Debug("dispatching rpc call", "method", o.Method, "chain", account.ChainID(), "fingerprint", hexutils.BytesToHex(crypto.Keccak256(b)))
	}
	raw, err := req.Request(ctx, account.ChainID(), RpcCall{Method: o.Method, Params: params})
	if err != nil {
		return nil, NewOperationalError(RemoteCallFailure, err)
	}
	verdict, err := o.Verify(ctx, env, account, payload, raw)
	if err != nil {
		return nil, err
	}
	return &FormattedResult{
		Method:  o.Label(),
		Address: account.Address,
		Valid:   verdict.Valid,
		Result:  verdict.Result,
	}, nil
}

// DecodeResult unmarshals a raw artifact, reporting failures as MalformedResult.
func DecodeResult(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return Malformed("empty result")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return Malformed("malformed result: %v", err)
	}
	return nil
}
