// Package stream serves fusion states over gRPC. Messages are protobuf
// well-known types, so clients need no generated code: every state is a
// google.protobuf.Struct with the same fields as a recorded tick.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/monitoring"
)

var logf = monitoring.Prefixed("grpc")

const (
	ServiceName        = "motion.fusion.v1.Fusion"
	LatestMethod       = "/" + ServiceName + "/Latest"
	StreamStatesMethod = "/" + ServiceName + "/StreamStates"

	// TickIntervalHeader carries the pipeline tick interval in milliseconds.
	TickIntervalHeader = "x-tick-interval-ms"

	maxMsgSize = 4 * 1024 * 1024
)

// Source is the part of the pipeline the service reads.
type Source interface {
	Latest() *fusion.State
	Subscribe() (string, <-chan *fusion.State)
	Unsubscribe(string)
	TickInterval() time.Duration
}

// Service implements the Fusion service.
type Service interface {
	Latest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamStates(*structpb.Struct, grpc.ServerStream) error
}

// ServiceDesc describes the Fusion service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Latest",
		Handler:    latestHandler,
	}},
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamStates",
		Handler:       streamStatesHandler,
		ServerStreams: true,
	}},
	Metadata: "motion/fusion/v1/fusion.proto",
}

func latestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Service).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LatestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Service).Latest(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func streamStatesHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(Service).StreamStates(in, stream)
}

// Server streams states from a Source.
type Server struct {
	src Source

	clients atomic.Int32
	sent    atomic.Uint64
	dropped atomic.Uint64

	mu       sync.Mutex
	grpc     *grpc.Server
	listener net.Listener
	wg       sync.WaitGroup
}

var _ Service = (*Server)(nil)

func NewServer(src Source) *Server {
	return &Server{src: src}
}

// Register adds the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// Latest returns the most recent state.
func (s *Server) Latest(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := s.src.Latest()
	if st == nil {
		return nil, status.Error(codes.FailedPrecondition, "no state yet; start listening first")
	}
	return StateStruct(st)
}

// StreamStates sends every subsequent state until the client goes away.
// Request fields:
//   - converged_only (bool): skip states before the estimator has input
func (s *Server) StreamStates(req *structpb.Struct, stream grpc.ServerStream) error {
	convergedOnly := req.GetFields()["converged_only"].GetBoolValue()

	// subscribed before the header goes out, so a client that has the
	// header misses no state
	id, states := s.src.Subscribe()
	defer s.src.Unsubscribe(id)

	header := metadata.Pairs(TickIntervalHeader, strconv.FormatInt(s.src.TickInterval().Milliseconds(), 10))
	if err := stream.SendHeader(header); err != nil {
		return err
	}
	n := s.clients.Add(1)
	defer s.clients.Add(-1)
	logf("client %s subscribed (%d connected)", id, n)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			logf("client %s gone: %v", id, ctx.Err())
			return nil
		case st, ok := <-states:
			if !ok {
				return status.Error(codes.Unavailable, "pipeline closed")
			}
			if convergedOnly && !st.Converged() {
				s.dropped.Add(1)
				continue
			}
			msg, err := StateStruct(st)
			if err != nil {
				return status.Errorf(codes.Internal, "encode tick %d: %v", st.Tick, err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
			s.sent.Add(1)
		}
	}
}

// StateStruct converts st to its wire form.
func StateStruct(st *fusion.State) (*structpb.Struct, error) {
	data, err := json.Marshal(db.TickFromState(uuid.Nil, st))
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	delete(out.Fields, "run_id")
	return out, nil
}

// Stats counts streamed states.
type Stats struct {
	Clients int32
	Sent    uint64
	Skipped uint64
}

func (s *Server) Stats() Stats {
	return Stats{Clients: s.clients.Load(), Sent: s.sent.Load(), Skipped: s.dropped.Load()}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return s.serve(lis), nil
}

func (s *Server) serve(lis net.Listener) net.Addr {
	gs := grpc.NewServer(grpc.MaxSendMsgSize(maxMsgSize))
	s.Register(gs)

	s.mu.Lock()
	s.grpc, s.listener = gs, lis
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logf("serving on %s", lis.Addr())
		if err := gs.Serve(lis); err != nil {
			logf("serve: %v", err)
		}
	}()
	return lis.Addr()
}

// Stop drains open streams and stops the server.
func (s *Server) Stop() {
	s.mu.Lock()
	gs := s.grpc
	s.grpc = nil
	s.mu.Unlock()
	if gs == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		gs.Stop()
	}
	s.wg.Wait()
	logf("stopped")
}
