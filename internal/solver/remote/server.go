package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/namcsi/apperception-clingo/internal/solver"
)

// Server exposes a local solver.Solver as the Solve service.
type Server struct {
	backend solver.Solver
	tempDir string
	logger  *zap.Logger
}

// NewServer wraps backend. Shipped sources are materialised under tempDir
// ("" for the OS default).
func NewServer(backend solver.Solver, tempDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{backend: backend, tempDir: tempDir, logger: logger}
}

// Register adds the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// Solve runs one ground-then-search session and streams its events.
func (s *Server) Solve(msg *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	sources, req, err := decodeRequest(msg)
	if err != nil {
		return toStatus(ctx, err)
	}

	dir, err := os.MkdirTemp(s.tempDir, "solverd-*")
	if err != nil {
		return status.Errorf(codes.Internal, "session dir: %v", err)
	}
	defer os.RemoveAll(dir)

	for i, src := range sources {
		path := filepath.Join(dir, fmt.Sprintf("%02d-%s", i, filepath.Base(src.Name)))
		if err := os.WriteFile(path, []byte(src.Content), 0o644); err != nil {
			return status.Errorf(codes.Internal, "write source: %v", err)
		}
		req.Sources = append(req.Sources, path)
	}

	log := s.logger.With(zap.Int("sources", len(sources)), zap.Bool("bounded", req.Bound != nil))
	sess, err := s.backend.Open(ctx, req)
	if err != nil {
		return toStatus(ctx, err)
	}
	defer sess.Close()

	elapsed, err := sess.Ground(ctx)
	if err != nil {
		log.Warn("grounding failed", zap.Error(err))
		return toStatus(ctx, err)
	}
	ev, err := groundedEvent(elapsed)
	if err != nil {
		return status.Errorf(codes.Internal, "encode event: %v", err)
	}
	if err := stream.SendMsg(ev); err != nil {
		return err
	}

	out, err := sess.Search(ctx, func(m solver.Model) error {
		ev, err := modelEvent(m)
		if err != nil {
			return status.Errorf(codes.Internal, "encode model: %v", err)
		}
		return stream.SendMsg(ev)
	})
	if err != nil {
		log.Warn("search failed", zap.Error(err))
		return toStatus(ctx, err)
	}
	log.Debug("session done", zap.String("status", string(out.Status)), zap.Int("models", out.Models))

	ev, err = doneEvent(out)
	if err != nil {
		return status.Errorf(codes.Internal, "encode event: %v", err)
	}
	return stream.SendMsg(ev)
}

func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, solver.ErrMalformedRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, solver.ErrExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case ctx.Err() != nil:
		return status.FromContextError(ctx.Err()).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}
