package live

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"stockwatch/internal/watchlist"
)

// ServiceName is the full gRPC service name.
const ServiceName = "stockwatch.WatchlistSync"

const (
	snapshotMethod = "/" + ServiceName + "/Snapshot"
	watchMethod    = "/" + ServiceName + "/Watch"
)

// WatchlistSyncServer is the server API of the sync service. Messages are
// protobuf well-known types, so no generated code is needed: each snapshot
// is a Struct with "version", "state" and, for changes, "action" and
// "watchlistId".
type WatchlistSyncServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WatchlistSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: snapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "stockwatch/sync.proto",
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WatchlistSyncServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: snapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WatchlistSyncServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(WatchlistSyncServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// Source is the store side of the service.
type Source interface {
	State() *watchlist.State
	Subscribe(bufSize int) (int, <-chan watchlist.Event)
	Unsubscribe(id int)
}

var _ WatchlistSyncServer = (*Server)(nil)

// Server publishes a Source over gRPC.
type Server struct {
	src Source
	log *slog.Logger
}

// NewServer creates a sync server over src.
func NewServer(src Source, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{src: src, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&serviceDesc, s)
}

// Snapshot returns the current state.
func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	msg, err := encodeSnapshot(s.src.State(), nil)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return msg, nil
}

// Watch sends the current state, then a fresh snapshot after every applied
// change. Events that arrive after a newer snapshot was already sent are
// skipped. The stream ends when the client disconnects or the store closes.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	// Subscribe before the first snapshot so no change falls in between.
	subID, ch := s.src.Subscribe(64)
	defer s.src.Unsubscribe(subID)

	st := s.src.State()
	sent := st.Version
	msg, err := encodeSnapshot(st, nil)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := stream.Send(msg); err != nil {
		return err
	}
	s.log.Info("sync client subscribed", "subID", subID, "version", sent)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync client disconnected", "subID", subID)
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			st := s.src.State()
			if st.Version <= sent {
				continue
			}
			msg, err := encodeSnapshot(st, &evt)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			sent = st.Version
		}
	}
}

// encodeSnapshot wraps the persisted JSON layout of st in a Struct.
func encodeSnapshot(st *watchlist.State, evt *watchlist.Event) (*structpb.Struct, error) {
	data, err := watchlist.Encode(st)
	if err != nil {
		return nil, err
	}
	state := &structpb.Struct{}
	if err := protojson.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("converting state to struct: %w", err)
	}
	order := make([]*structpb.Value, 0, st.Len())
	for _, id := range st.IDs() {
		order = append(order, structpb.NewStringValue(id))
	}
	fields := map[string]*structpb.Value{
		"version": structpb.NewNumberValue(float64(st.Version)),
		"state":   structpb.NewStructValue(state),
		"order":   structpb.NewListValue(&structpb.ListValue{Values: order}),
	}
	if evt != nil {
		fields["action"] = structpb.NewStringValue(evt.Action.String())
		fields["watchlistId"] = structpb.NewStringValue(evt.WatchlistID)
	}
	return &structpb.Struct{Fields: fields}, nil
}

// decodeSnapshot is the inverse of encodeSnapshot.
func decodeSnapshot(msg *structpb.Struct) (Snapshot, error) {
	f := msg.GetFields()
	state := f["state"].GetStructValue()
	if state == nil {
		return Snapshot{}, fmt.Errorf("snapshot has no state")
	}
	data, err := protojson.Marshal(state)
	if err != nil {
		return Snapshot{}, fmt.Errorf("converting struct to state: %w", err)
	}
	st, err := watchlist.Decode(data, watchlist.DefaultEnv())
	if err != nil {
		return Snapshot{}, err
	}
	// Struct fields are unordered; the id list restores listing order.
	var order []string
	for _, v := range f["order"].GetListValue().GetValues() {
		order = append(order, v.GetStringValue())
	}
	st = st.WithOrder(order)
	return Snapshot{
		Version:     uint64(f["version"].GetNumberValue()),
		Action:      f["action"].GetStringValue(),
		WatchlistID: f["watchlistId"].GetStringValue(),
		State:       st,
	}, nil
}
