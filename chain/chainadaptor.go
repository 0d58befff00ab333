package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type IChainAdaptor interface {
	// Namespace is the CAIP-2 namespace served by the adaptor, e.g. "eip155".
	Namespace() string
	// Methods lists every RPC method the namespace knows about.
	Methods() []string
	// Operations maps presentation labels to runnable operations.
	Operations() map[string]Op
}

// Requester is the session-scoped request/response channel as seen by an operation.
type Requester interface {
	Request(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error)
}

type RpcCall struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// AccountDirectory resolves the accounts the active session exposes and any
// balances known for them.
type AccountDirectory interface {
	GetAccounts(chainID string) []string
	GetBalance(chainID, address string) (*big.Int, bool)
}

// Env carries the ambient parameters a builder or verifier may read.
type Env struct {
	Testnet   bool
	Now       func() time.Time
	Directory AccountDirectory
	// Endpoints maps a numeric chain reference to an RPC base URL.
	Endpoints map[string]string
}

func (e *Env) Timestamp() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) Endpoint(reference string) (string, error) {
	if e != nil {
		if url, ok := e.Endpoints[reference]; ok && url != "" {
			return url, nil
		}
	}
	return "", NewOperationalError(MissingChainConfig, errors.Errorf("missing rpc endpoint for chain reference %s", reference))
}

func (e *Env) Balance(account ChainAccount) *big.Int {
	if e == nil || e.Directory == nil {
		return new(big.Int)
	}
	if balance, ok := e.Directory.GetBalance(account.ChainID(), account.Address); ok && balance != nil {
		return balance
	}
	return new(big.Int)
}

type ChainAccount struct {
	Namespace string
	Reference string
	Address   string
}

func NewChainAccount(chainID, address string) (ChainAccount, error) {
	parts := strings.SplitN(chainID, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ChainAccount{}, errors.Errorf("invalid chain id %q", chainID)
	}
	if address == "" {
		return ChainAccount{}, errors.Errorf("empty address for chain %s", chainID)
	}
	return ChainAccount{Namespace: parts[0], Reference: parts[1], Address: address}, nil
}

// ParseChainAccount parses "<namespace>:<reference>:<address>". The address may
// itself contain colons.
func ParseChainAccount(s string) (ChainAccount, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return ChainAccount{}, errors.Errorf("invalid chain account %q", s)
	}
	return NewChainAccount(parts[0]+":"+parts[1], parts[2])
}

func (a ChainAccount) ChainID() string {
	return a.Namespace + ":" + a.Reference
}

func (a ChainAccount) String() string {
	return a.ChainID() + ":" + a.Address
}

type RequesterFunc func(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error)

func (f RequesterFunc) Request(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error) {
	return f(ctx, chainID, call)
}

// DecodeParams round-trips call params through JSON into v, the way a remote
// peer would see them.
func (c RpcCall) DecodeParams(v any) error {
	b, err := json.Marshal(c.Params)
	if err != nil {
		return errors.Wrap(err, "marshal params")
	}
	return errors.Wrap(json.Unmarshal(b, v), "unmarshal params")
}
