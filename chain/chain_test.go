package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDirectory map[string]*big.Int

func (d staticDirectory) GetAccounts(chainID string) []string { return nil }

func (d staticDirectory) GetBalance(chainID, address string) (*big.Int, bool) {
	b, ok := d[address]
	return b, ok
}

func TestParseChainAccount(t *testing.T) {
	tests := []struct {
		in      string
		want    ChainAccount
		wantErr bool
	}{
		{in: "eip155:1:0xabc", want: ChainAccount{Namespace: "eip155", Reference: "1", Address: "0xabc"}},
		{in: "bch:bitcoincash:qz2s", want: ChainAccount{Namespace: "bch", Reference: "bitcoincash", Address: "qz2s"}},
		{in: "eip155:1", wantErr: true},
		{in: "eip155::0xabc", wantErr: true},
		{in: "eip155:1:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChainAccount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestEnvEndpointMissing(t *testing.T) {
	env := &Env{Endpoints: map[string]string{"1": "http://localhost:8545"}}
	url, err := env.Endpoint("1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", url)

	_, err = env.Endpoint("137")
	require.Error(t, err)
	assert.Equal(t, MissingChainConfig, KindOf(err))
	assert.False(t, IsPrecondition(err))
}

func TestEnvBalanceDefaultsToZero(t *testing.T) {
	env := &Env{Directory: staticDirectory{"0xabc": big.NewInt(42)}}
	assert.Equal(t, int64(42), env.Balance(ChainAccount{Namespace: "eip155", Reference: "1", Address: "0xabc"}).Int64())
	assert.Equal(t, int64(0), env.Balance(ChainAccount{Namespace: "eip155", Reference: "1", Address: "0xdef"}).Int64())
	assert.Equal(t, int64(0), (*Env)(nil).Balance(ChainAccount{}).Int64())
}

func testOperation(admit bool) *Operation[string] {
	return &Operation[string]{
		Method: "test_sign",
		Name:   "test_sign (v2)",
		Build: func(ctx context.Context, env *Env, account ChainAccount) (string, error) {
			return "payload-" + account.Address, nil
		},
		Admit: func(ctx context.Context, env *Env, account ChainAccount, payload string) (string, bool) {
			return "not admitted", admit
		},
		Verify: func(ctx context.Context, env *Env, account ChainAccount, payload string, raw json.RawMessage) (Verdict, error) {
			var sig string
			if err := DecodeResult(raw, &sig); err != nil {
				return Verdict{}, err
			}
			return Verified(sig == "sig:"+payload, sig), nil
		},
	}
}

func TestOperationRun(t *testing.T) {
	account := ChainAccount{Namespace: "test", Reference: "1", Address: "alice"}
	calls := 0
	req := RequesterFunc(func(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error) {
		calls++
		assert.Equal(t, "test:1", chainID)
		assert.Equal(t, "test_sign", call.Method)
		var p string
		require.NoError(t, call.DecodeParams(&p))
		return json.Marshal("sig:" + p)
	})

	res, err := testOperation(true).Run(context.Background(), &Env{}, req, account)
	require.NoError(t, err)
	assert.Equal(t, &FormattedResult{Method: "test_sign (v2)", Address: "alice", Valid: true, Result: "sig:payload-alice"}, res)
	assert.Equal(t, 1, calls)
}

func TestOperationAdmissionShortCircuits(t *testing.T) {
	req := RequesterFunc(func(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error) {
		t.Fatal("channel must not be called")
		return nil, nil
	})
	res, err := testOperation(false).Run(context.Background(), &Env{}, req, ChainAccount{Namespace: "test", Reference: "1", Address: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "not admitted", res.Result)
}

func TestOperationRemoteFailure(t *testing.T) {
	req := RequesterFunc(func(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error) {
		return nil, errors.New("User rejected.")
	})
	_, err := testOperation(true).Run(context.Background(), &Env{}, req, ChainAccount{Namespace: "test", Reference: "1", Address: "alice"})
	require.Error(t, err)
	assert.Equal(t, RemoteCallFailure, KindOf(err))
	assert.Equal(t, "User rejected.", err.Error())
}

func TestOperationMalformedResult(t *testing.T) {
	req := RequesterFunc(func(ctx context.Context, chainID string, call RpcCall) (json.RawMessage, error) {
		return json.RawMessage(`{"not":"a string"}`), nil
	})
	_, err := testOperation(true).Run(context.Background(), &Env{}, req, ChainAccount{Namespace: "test", Reference: "1", Address: "alice"})
	require.Error(t, err)
	assert.Equal(t, MalformedResult, KindOf(err))
}

func TestAllValid(t *testing.T) {
	assert.True(t, AllValid([]bool{true, true, true}))
	assert.False(t, AllValid([]bool{true, false, true}))
	assert.False(t, AllValid(nil))
}

func TestErrorCategories(t *testing.T) {
	pre := NewPreconditionError(NotInitialized, ErrNotInitialized)
	op := NewOperationalError(MissingAccount, errors.New("missing account"))
	assert.True(t, IsPrecondition(pre))
	assert.False(t, IsPrecondition(op))
	assert.True(t, IsPrecondition(errors.Wrap(pre, "dispatch")))
	assert.Equal(t, NotInitialized, KindOf(pre))
	assert.Equal(t, MissingAccount, KindOf(op))
	assert.Equal(t, RemoteCallFailure, KindOf(errors.New("boom")))
	assert.Equal(t, "MissingChainConfig", MissingChainConfig.String())
}
