// Package remote runs solver sessions on a solverd process over gRPC. The
// client ships program files by content so the server needs no shared
// filesystem.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #region client-struct
// Client is a solver.Solver backed by a remote Solve service.
type Client struct {
	conn   *grpc.ClientConn
	caller grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// Dial connects to a solverd server.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, caller: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing with an in-memory listener.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{caller: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection when the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region open
// Open reads every source file and encodes the request. No RPC is made
// until Ground.
func (c *Client) Open(_ context.Context, req solver.Request) (solver.Session, error) {
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("%w: no program sources", solver.ErrMalformedRequest)
	}
	sources := make([]source, 0, len(req.Sources))
	for _, path := range req.Sources {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read source: %v", solver.ErrMalformedRequest, err)
		}
		sources = append(sources, source{Name: filepath.Base(path), Content: string(data)})
	}
	msg, err := encodeRequest(sources, req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return &clientSession{caller: c.caller, msg: msg}, nil
}
// #endregion open

// #region session
type clientSession struct {
	caller   grpc.ClientConnInterface
	msg      *structpb.Struct
	stream   grpc.ClientStream
	cancel   context.CancelFunc
	grounded bool
	searched bool
	closed   bool
}

// Ground starts the stream and waits for the grounded event. The stream
// lives until Search finishes or the session is closed.
func (s *clientSession) Ground(ctx context.Context) (time.Duration, error) {
	if s.closed || s.grounded {
		return 0, solver.ErrSessionState
	}
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	stream, err := s.caller.NewStream(streamCtx, &ServiceDesc.Streams[0], SolveMethod)
	if err != nil {
		return 0, fromStatus(ctx, err)
	}
	if err := stream.SendMsg(s.msg); err != nil {
		return 0, fromStatus(ctx, err)
	}
	if err := stream.CloseSend(); err != nil {
		return 0, fromStatus(ctx, err)
	}
	s.stream = stream

	ev := new(structpb.Struct)
	if err := stream.RecvMsg(ev); err != nil {
		return 0, fromStatus(ctx, err)
	}
	if kind := eventKind(ev); kind != eventGrounded {
		return 0, fmt.Errorf("unexpected %q event before grounding finished", kind)
	}
	s.grounded = true
	return elapsedOf(ev), nil
}

// Search reads model events until the done event.
func (s *clientSession) Search(ctx context.Context, onModel func(solver.Model) error) (solver.Outcome, error) {
	if s.closed || !s.grounded || s.searched {
		return solver.Outcome{}, solver.ErrSessionState
	}
	s.searched = true
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	var out solver.Outcome
	for {
		ev := new(structpb.Struct)
		if err := s.stream.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return out, errors.New("solve stream ended without a done event")
			}
			return out, fromStatus(ctx, err)
		}
		switch kind := eventKind(ev); kind {
		case eventModel:
			m, err := decodeModel(ev)
			if err != nil {
				s.cancel()
				return out, err
			}
			out.Models++
			if err := onModel(m); err != nil {
				s.cancel()
				return out, err
			}
		case eventDone:
			return decodeOutcome(ev), nil
		default:
			s.cancel()
			return out, fmt.Errorf("unexpected %q event during search", kind)
		}
	}
}

// Close cancels the stream if it is still open.
func (s *clientSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
// #endregion session

// #region errors
// fromStatus maps gRPC status codes back onto the solver's error contract.
func fromStatus(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", solver.ErrMalformedRequest, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", solver.ErrExhausted, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return fmt.Errorf("remote solver: %w", err)
}
// #endregion errors
