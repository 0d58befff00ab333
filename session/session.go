package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
)

// Channel is an established, encrypted, topic-addressed request/response link
// to the wallet. Pairing and encryption live behind it.
type Channel interface {
	Ping(ctx context.Context, topic string) error
	Request(ctx context.Context, topic, chainID string, call chain.RpcCall) (json.RawMessage, error)
}

// Session is the non-owned view of the active wallet session.
type Session struct {
	Topic string
	// Accounts are CAIP-10 account ids approved by the wallet.
	Accounts []string
	Expiry   time.Time
}

// Namespaces returns the distinct namespaces present in the session's accounts.
func (s *Session) Namespaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.Accounts {
		ns := strings.SplitN(a, ":", 2)[0]
		if !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	return out
}

// AccountsFor returns the addresses approved for chainID.
func (s *Session) AccountsFor(chainID string) []string {
	var out []string
	for _, a := range s.Accounts {
		account, err := chain.ParseChainAccount(a)
		if err != nil {
			log.Warn("skipping malformed session account", "account", a, "err", err)
			continue
		}
		if account.ChainID() == chainID {
			out = append(out, account.Address)
		}
	}
	return out
}

// Client binds a Channel to one session topic.
type Client struct {
	channel Channel
	session *Session
}

func NewClient(channel Channel, s *Session) (*Client, error) {
	if channel == nil || s == nil || s.Topic == "" {
		return nil, chain.NewPreconditionError(chain.NotInitialized, chain.ErrNotInitialized)
	}
	return &Client{channel: channel, session: s}, nil
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Ping(ctx context.Context) error {
	return c.channel.Ping(ctx, c.session.Topic)
}

func (c *Client) Request(ctx context.Context, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	return c.channel.Request(ctx, c.session.Topic, chainID, call)
}

type timeoutChannel struct {
	Channel
	timeout time.Duration
}

// WithTimeout bounds every Request and Ping issued through ch. A zero or
// negative timeout returns ch unchanged.
func WithTimeout(ch Channel, timeout time.Duration) Channel {
	if timeout <= 0 {
		return ch
	}
	return &timeoutChannel{Channel: ch, timeout: timeout}
}

func (t *timeoutChannel) Ping(ctx context.Context, topic string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.wrap(ctx, t.Channel.Ping(ctx, topic))
}

func (t *timeoutChannel) Request(ctx context.Context, topic, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	raw, err := t.Channel.Request(ctx, topic, chainID, call)
	return raw, t.wrap(ctx, err)
}

func (t *timeoutChannel) wrap(ctx context.Context, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Errorf("request timed out after %s", t.timeout)
	}
	return err
}
