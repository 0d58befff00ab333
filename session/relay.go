package session

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const RelayServiceName = "walletconnect.relay.v1.Relay"

type PingRequest struct {
	Topic string `json:"topic"`
}

type PingReply struct{}

type RelayRequest struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	ChainID string          `json:"chainId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type RelayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RelayReply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RelayError     `json:"error,omitempty"`
}

// RelayServer is the wallet side of the relay service.
type RelayServer interface {
	Ping(ctx context.Context, req *PingRequest) (*PingReply, error)
	Request(ctx context.Context, req *RelayRequest) (*RelayReply, error)
}

func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&relayServiceDesc, srv)
}

// NewRelayServer returns a grpc server exposing srv with panic recovery and
// request logging installed.
func NewRelayServer(srv RelayServer, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(append([]grpc.ServerOption{grpc.UnaryInterceptor(Interceptor)}, opts...)...)
	RegisterRelayServer(s, srv)
	return s
}

func Interceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if e := recover(); e != nil {
			log.Error("panic error", "msg", e)
			log.Debug(string(debug.Stack()))
			err = status.Errorf(codes.Internal, "Panic err: %v", e)
		}
	}()
	pos := strings.LastIndex(info.FullMethod, "/")
	method := info.FullMethod[pos+1:]
	if r, ok := req.(*RelayRequest); ok {
		log.Info(method, "topic", r.Topic, "chain", r.ChainID, "rpc", r.Method, "id", r.ID)
	} else {
		log.Info(method, "req", req)
	}
	resp, err = handler(ctx, req)
	log.Debug("Finish handling", "resp", resp, "err", err)
	return
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pingMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func requestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RelayRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Request(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: requestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Request(ctx, req.(*RelayRequest))
	}
	return interceptor(ctx, in, info, handler)
}

const (
	pingMethod    = "/" + RelayServiceName + "/Ping"
	requestMethod = "/" + RelayServiceName + "/Request"
)

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: RelayServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Request", Handler: requestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "walletconnect/relay/v1/relay.proto",
}
