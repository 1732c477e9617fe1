package stream

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Fusion service on conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Latest fetches the most recent state.
func (c *Client) Latest(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, LatestMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StateStream receives states from StreamStates.
type StateStream struct {
	stream       grpc.ClientStream
	tickInterval time.Duration
}

// StreamStates opens a state stream. It returns once the server has sent
// its header.
func (c *Client) StreamStates(ctx context.Context, convergedOnly bool, opts ...grpc.CallOption) (*StateStream, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], StreamStatesMethod, opts...)
	if err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]interface{}{"converged_only": convergedOnly})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	header, err := stream.Header()
	if err != nil {
		return nil, err
	}
	ss := &StateStream{stream: stream}
	if v := header.Get(TickIntervalHeader); len(v) > 0 {
		if ms, err := strconv.ParseInt(v[0], 10, 64); err == nil {
			ss.tickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return ss, nil
}

// TickInterval is the pipeline's tick interval when the stream opened.
func (s *StateStream) TickInterval() time.Duration { return s.tickInterval }

// Recv blocks for the next state. It returns io.EOF when the server ends
// the stream cleanly.
func (s *StateStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}
