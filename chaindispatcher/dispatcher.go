package chaindispatcher

import (
	"context"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/bitcoincash"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/cosmos"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/ethereum"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/kadena"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/monero"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/multiversx"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/near"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/polkadot"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/solana"
	"github.com/dapplink-baas/wallet-connect-dapp/chain/tron"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/metrics"
	"github.com/dapplink-baas/wallet-connect-dapp/session"
)

type ChainType = string

// Operation is a dispatched namespace operation. It only returns an error for
// precondition failures; every other outcome lands in the result slot.
type Operation func(ctx context.Context, chainID, address string) error

type Factory func(conf *config.Config) (chain.IChainAdaptor, error)

var chainAdaptorFactoryMap = map[ChainType]Factory{
	ethereum.ChainName:    ethereum.NewChainAdaptor,
	cosmos.ChainName:      cosmos.NewChainAdaptor,
	solana.ChainName:      solana.NewChainAdaptor,
	polkadot.ChainName:    polkadot.NewChainAdaptor,
	near.ChainName:        near.NewChainAdaptor,
	multiversx.ChainName:  multiversx.NewChainAdaptor,
	tron.ChainName:        tron.NewChainAdaptor,
	kadena.ChainName:      kadena.NewChainAdaptor,
	bitcoincash.ChainName: bitcoincash.NewChainAdaptor,
	monero.ChainName:      monero.NewChainAdaptor,
}

// SupportedChains lists every namespace an adaptor exists for.
func SupportedChains() []string {
	out := make([]string, 0, len(chainAdaptorFactoryMap))
	for name := range chainAdaptorFactoryMap {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ChainDispatcher owns the pending flag and the result slot. Calls are expected
// to be serialized by the caller: overlapping calls race on both and the last
// one to finish wins the slot.
type ChainDispatcher struct {
	registry  map[ChainType]chain.IChainAdaptor
	directory chain.AccountDirectory
	endpoints map[string]string
	now       func() time.Time
	metrics   metrics.OrchestratorMetrics

	mu          sync.Mutex
	testnet     bool
	client      *session.Client
	pending     bool
	result      chain.FormattedResult
	subscribers map[int]chan chain.FormattedResult
	nextSub     int
}

type Option func(d *ChainDispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *ChainDispatcher) { d.now = now }
}

func WithMetrics(m metrics.OrchestratorMetrics) Option {
	return func(d *ChainDispatcher) { d.metrics = m }
}

// WithAdaptor registers an adaptor directly, replacing any factory-built one.
func WithAdaptor(adaptor chain.IChainAdaptor) Option {
	return func(d *ChainDispatcher) { d.registry[adaptor.Namespace()] = adaptor }
}

func NewChainDispatcher(conf *config.Config, directory chain.AccountDirectory, opts ...Option) (*ChainDispatcher, error) {
	dispatcher := &ChainDispatcher{
		registry:    make(map[ChainType]chain.IChainAdaptor),
		directory:   directory,
		endpoints:   conf.Endpoints,
		now:         time.Now,
		metrics:     metrics.Noop(),
		testnet:     conf.Testnet,
		subscribers: make(map[int]chan chain.FormattedResult),
	}
	for _, c := range conf.Chains {
		if factory, ok := chainAdaptorFactoryMap[c]; ok {
			adaptor, err := factory(conf)
			if err != nil {
				log.Error("failed to setup chain", "chain", c, "err", err)
				return nil, errors.Wrapf(err, "setup chain %s", c)
			}
			dispatcher.registry[c] = adaptor
		} else {
			log.Error("unsupported chain", "chain", c, "supportedChains", SupportedChains())
		}
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Connect binds the dispatcher to an established session.
func (d *ChainDispatcher) Connect(channel session.Channel, s *session.Session) error {
	client, err := session.NewClient(channel, s)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.client = client
	d.mu.Unlock()
	log.Info("session connected", "topic", s.Topic, "namespaces", s.Namespaces())
	return nil
}

func (d *ChainDispatcher) Disconnect() {
	d.mu.Lock()
	d.client = nil
	d.mu.Unlock()
}

func (d *ChainDispatcher) SetTestnet(testnet bool) {
	d.mu.Lock()
	d.testnet = testnet
	d.mu.Unlock()
}

func (d *ChainDispatcher) Testnet() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.testnet
}

func (d *ChainDispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Result returns the most recently completed call's result.
func (d *ChainDispatcher) Result() chain.FormattedResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// Subscribe streams every result produced from now on. Slow subscribers lose
// results once their buffer is full.
func (d *ChainDispatcher) Subscribe(buffer int) (<-chan chain.FormattedResult, func()) {
	ch := make(chan chain.FormattedResult, buffer)
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = ch
	d.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

const (
	MethodPing  = "ping"
	PingSuccess = "pong"
)

// Ping checks the session. Only a missing session is returned; a transport
// failure lands in the result slot like any other call.
func (d *ChainDispatcher) Ping(ctx context.Context) error {
	client, err := d.activeClient()
	if err != nil {
		d.metrics.IncRequests("session", MethodPing, metrics.OutcomePrecondition)
		return err
	}
	d.setPending(true)
	start := d.now()
	res := chain.FormattedResult{Method: MethodPing, Valid: true, Result: PingSuccess}
	outcome := metrics.OutcomeValid
	if err := client.Ping(ctx); err != nil {
		log.Warn("ping failed", "topic", client.Session().Topic, "err", err)
		res = chain.FormattedResult{Method: MethodPing, Valid: false, Result: err.Error()}
		outcome = metrics.OutcomeFailed
	}
	d.metrics.ObserveRequestDuration("session", d.now().Sub(start))
	d.metrics.IncRequests("session", MethodPing, outcome)
	d.complete(res)
	return nil
}

// Methods returns the namespace's static RPC method table.
func (d *ChainDispatcher) Methods(namespace string) ([]string, bool) {
	adaptor, ok := d.registry[namespace]
	if !ok {
		return nil, false
	}
	return adaptor.Methods(), true
}

func (d *ChainDispatcher) Namespaces() []string {
	out := make([]string, 0, len(d.registry))
	for name := range d.registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Operations is the outward table of dispatched operations for a namespace.
func (d *ChainDispatcher) Operations(namespace string) (map[string]Operation, bool) {
	adaptor, ok := d.registry[namespace]
	if !ok {
		return nil, false
	}
	out := make(map[string]Operation)
	for label, op := range adaptor.Operations() {
		out[label] = d.Dispatch(namespace, op)
	}
	return out, true
}

// Call dispatches the operation named label of chainID's namespace.
func (d *ChainDispatcher) Call(ctx context.Context, chainID, address, label string) error {
	namespace := strings.SplitN(chainID, ":", 2)[0]
	ops, ok := d.Operations(namespace)
	if !ok {
		return errors.Errorf("unsupported chain %s", namespace)
	}
	operation, ok := ops[label]
	if !ok {
		return errors.Errorf("unsupported operation %s for chain %s", label, namespace)
	}
	return operation(ctx, chainID, address)
}

func (d *ChainDispatcher) activeClient() (*session.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil, chain.NewPreconditionError(chain.NotInitialized, chain.ErrNotInitialized)
	}
	return d.client, nil
}

// Dispatch wraps op in the request lifecycle.
func (d *ChainDispatcher) Dispatch(namespace string, op chain.Op) Operation {
	return func(ctx context.Context, chainID, address string) error {
		client, err := d.activeClient()
		if err != nil {
			d.metrics.IncRequests(namespace, op.Label(), metrics.OutcomePrecondition)
			return err
		}
		d.setPending(true)
		start := d.now()
		log.Info(op.Label(), "chain", chainID, "address", address)

		res, err := d.invoke(ctx, client, namespace, op, chainID, address)
		if err != nil && chain.IsPrecondition(err) {
			d.setPending(false)
			d.metrics.IncRequests(namespace, op.Label(), metrics.OutcomePrecondition)
			return err
		}
		outcome := metrics.OutcomeValid
		if err != nil {
			log.Warn("operation failed", "method", op.Label(), "chain", chainID, "kind", chain.KindOf(err), "err", err)
			res = chain.Failed(address, err)
			outcome = metrics.OutcomeFailed
		} else if !res.Valid {
			outcome = metrics.OutcomeInvalid
		}
		d.metrics.ObserveRequestDuration(namespace, d.now().Sub(start))
		d.metrics.IncRequests(namespace, op.Label(), outcome)
		d.complete(*res)
		log.Debug("Finish handling", "method", op.Label(), "valid", res.Valid, "result", res.Result)
		return nil
	}
}

func (d *ChainDispatcher) invoke(ctx context.Context, client *session.Client, namespace string, op chain.Op, chainID, address string) (res *chain.FormattedResult, err error) {
	defer func() {
		if e := recover(); e != nil {
			log.Error("panic error", "msg", e)
			log.Debug(string(debug.Stack()))
			res, err = nil, chain.NewOperationalError(chain.OperationPanic, errors.Errorf("Panic err: %v", e))
		}
	}()
	account, err := chain.NewChainAccount(chainID, address)
	if err != nil {
		return nil, chain.NewOperationalError(chain.MissingAccount, err)
	}
	if account.Namespace != namespace {
		return nil, chain.NewOperationalError(chain.MissingChainConfig, errors.Errorf("chain %s is not served by namespace %s", chainID, namespace))
	}
	if !d.knownAccount(client, account) {
		return nil, chain.NewOperationalError(chain.MissingAccount, errors.Errorf("account %s not found in session", account))
	}
	env := &chain.Env{
		Testnet:   d.Testnet(),
		Now:       d.now,
		Directory: d.directory,
		Endpoints: d.endpoints,
	}
	res, err = op.Run(ctx, env, client, account)
	if err == nil && res == nil {
		err = chain.Malformed("operation %s produced no result", op.Label())
	}
	return res, err
}

func (d *ChainDispatcher) knownAccount(client *session.Client, account chain.ChainAccount) bool {
	candidates := client.Session().AccountsFor(account.ChainID())
	if d.directory != nil {
		candidates = append(candidates, d.directory.GetAccounts(account.ChainID())...)
	}
	for _, a := range candidates {
		if strings.EqualFold(a, account.Address) {
			return true
		}
	}
	return false
}

func (d *ChainDispatcher) setPending(pending bool) {
	d.mu.Lock()
	d.pending = pending
	d.mu.Unlock()
	d.metrics.SetPending(pending)
}

// complete stores res, clears the pending flag and publishes res.
func (d *ChainDispatcher) complete(res chain.FormattedResult) {
	d.mu.Lock()
	d.result = res
	d.pending = false
	for id, ch := range d.subscribers {
		select {
		case ch <- res:
		default:
			log.Warn("result subscriber is full, dropping result", "subscriber", id)
		}
	}
	d.mu.Unlock()
	d.metrics.SetPending(false)
}
