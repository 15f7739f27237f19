package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client reads snapshots from a sync server and keeps a Mirror up to date.
type Client struct {
	conn  grpc.ClientConnInterface
	close func() error
	log   *slog.Logger
}

// Dial creates a client targeting the given gRPC address.
func Dial(addr string, log *slog.Logger) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	c := NewClient(conn, log)
	c.close = conn.Close
	return c, nil
}

// NewClient creates a client over an existing connection. Close leaves the
// connection open.
func NewClient(conn grpc.ClientConnInterface, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{conn: conn, log: log}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Snapshot fetches the current remote state once.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, snapshotMethod, &emptypb.Empty{}, out); err != nil {
		return Snapshot{}, fmt.Errorf("fetching snapshot: %w", err)
	}
	return decodeSnapshot(out)
}

// Sync streams snapshots into m. It blocks until ctx is cancelled or the
// stream ends; a server-side close returns nil.
func (c *Client) Sync(ctx context.Context, m *Mirror) error {
	cs, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], watchMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	c.log.Info("connected to watchlist stream")
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receiving snapshot: %w", err)
		}
		snap, err := decodeSnapshot(msg)
		if err != nil {
			c.log.Warn("dropping undecodable snapshot", "error", err)
			continue
		}
		m.Apply(snap)
	}
}
