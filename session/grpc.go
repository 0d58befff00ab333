package session

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
)

// GRPCChannel is a Channel backed by a relay service reachable over grpc.
type GRPCChannel struct {
	conn grpc.ClientConnInterface
}

func NewGRPCChannel(conn grpc.ClientConnInterface) *GRPCChannel {
	return &GRPCChannel{conn: conn}
}

// Dial connects to a relay at target. Transport security is left to opts; the
// default is an insecure local connection.
func Dial(target string, opts ...grpc.DialOption) (*GRPCChannel, *grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dial relay %s", target)
	}
	return NewGRPCChannel(conn), conn, nil
}

func (g *GRPCChannel) Ping(ctx context.Context, topic string) error {
	var reply PingReply
	if err := g.conn.Invoke(ctx, pingMethod, &PingRequest{Topic: topic}, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		return errors.New(status.Convert(err).Message())
	}
	return nil
}

func (g *GRPCChannel) Request(ctx context.Context, topic, chainID string, call chain.RpcCall) (json.RawMessage, error) {
	params, err := json.Marshal(call.Params)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request params")
	}
	req := &RelayRequest{
		ID:      uuid.NewString(),
		Topic:   topic,
		ChainID: chainID,
		Method:  call.Method,
		Params:  params,
	}
	var reply RelayReply
	if err := g.conn.Invoke(ctx, requestMethod, req, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		log.Error("relay request failed", "id", req.ID, "method", call.Method, "err", err)
		return nil, errors.New(status.Convert(err).Message())
	}
	if reply.Error != nil {
		return nil, errors.New(reply.Error.Message)
	}
	if reply.ID != "" && reply.ID != req.ID {
		return nil, errors.Errorf("relay reply id %s does not match request %s", reply.ID, req.ID)
	}
	return reply.Result, nil
}
