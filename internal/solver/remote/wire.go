package remote

import (
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/namcsi/apperception-clingo/internal/asp"
	"github.com/namcsi/apperception-clingo/internal/frame"
	"github.com/namcsi/apperception-clingo/internal/solver"
)

// #region service

// SolveMethod is the full method name of the server-streaming Solve RPC.
const SolveMethod = "/apperception.solver.v1.Solver/Solve"

// SolverServer is implemented by Server.
type SolverServer interface {
	Solve(req *structpb.Struct, stream grpc.ServerStream) error
}

func solveHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SolverServer).Solve(req, stream)
}

// ServiceDesc describes the solver service. Messages are
// google.protobuf.Struct values on both sides.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "apperception.solver.v1.Solver",
	HandlerType: (*SolverServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Solve",
		Handler:       solveHandler,
		ServerStreams: true,
	}},
	Metadata: "apperception/solver/v1/solver.proto",
}

// #endregion service

// #region events

const (
	eventGrounded = "grounded"
	eventModel    = "model"
	eventDone     = "done"
)

// source is a program file shipped by content.
type source struct {
	Name    string
	Content string
}

// #endregion events

// #region request-codec

func encodeRequest(sources []source, req solver.Request) (*structpb.Struct, error) {
	srcs := make([]any, len(sources))
	for i, s := range sources {
		srcs[i] = map[string]any{"name": s.Name, "content": s.Content}
	}
	consts := make([]any, len(req.Consts))
	for i, c := range req.Consts {
		consts[i] = map[string]any{"name": c.Name, "value": c.Value}
	}
	m := map[string]any{
		"sources":       srcs,
		"consts":        consts,
		"time_limit_ms": req.TimeLimit.Milliseconds(),
	}
	if req.Bound != nil {
		m["bound"] = *req.Bound
	}
	return structpb.NewStruct(m)
}

func decodeRequest(s *structpb.Struct) ([]source, solver.Request, error) {
	var req solver.Request
	f := s.GetFields()

	var sources []source
	for _, v := range f["sources"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		name := sf["name"].GetStringValue()
		if name == "" {
			return nil, req, fmt.Errorf("%w: source without name", solver.ErrMalformedRequest)
		}
		sources = append(sources, source{Name: name, Content: sf["content"].GetStringValue()})
	}
	if len(sources) == 0 {
		return nil, req, fmt.Errorf("%w: no program sources", solver.ErrMalformedRequest)
	}

	for _, v := range f["consts"].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		name := cf["name"].GetStringValue()
		if !frame.Param(name).Valid() {
			return nil, req, fmt.Errorf("%w: unknown constant %q", solver.ErrMalformedRequest, name)
		}
		req.Consts = append(req.Consts, frame.Const{Name: name, Value: int(cf["value"].GetNumberValue())})
	}
	if b, ok := f["bound"]; ok {
		v := int(b.GetNumberValue())
		req.Bound = &v
	}
	req.TimeLimit = time.Duration(f["time_limit_ms"].GetNumberValue()) * time.Millisecond
	return sources, req, nil
}

// #endregion request-codec

// #region event-codec

func groundedEvent(elapsed time.Duration) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"event":      eventGrounded,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func modelEvent(m solver.Model) (*structpb.Struct, error) {
	atoms := make([]any, len(m.Facts))
	for i, f := range m.Facts {
		atoms[i] = f.String()
	}
	cost := make([]any, len(m.Cost))
	for i, c := range m.Cost {
		cost[i] = c
	}
	return structpb.NewStruct(map[string]any{
		"event":  eventModel,
		"number": m.Number,
		"atoms":  atoms,
		"cost":   cost,
	})
}

func doneEvent(out solver.Outcome) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"event":      eventDone,
		"status":     string(out.Status),
		"models":     out.Models,
		"elapsed_ms": out.Elapsed.Milliseconds(),
	})
}

func eventKind(s *structpb.Struct) string {
	return s.GetFields()["event"].GetStringValue()
}

func elapsedOf(s *structpb.Struct) time.Duration {
	return time.Duration(s.GetFields()["elapsed_ms"].GetNumberValue()) * time.Millisecond
}

func decodeModel(s *structpb.Struct) (solver.Model, error) {
	f := s.GetFields()
	m := solver.Model{Number: int(f["number"].GetNumberValue())}
	for _, v := range f["atoms"].GetListValue().GetValues() {
		t, err := asp.Parse(v.GetStringValue())
		if err != nil {
			return solver.Model{}, fmt.Errorf("model %d: %w", m.Number, err)
		}
		m.Facts = append(m.Facts, t)
	}
	for _, v := range f["cost"].GetListValue().GetValues() {
		m.Cost = append(m.Cost, int(v.GetNumberValue()))
	}
	return m, nil
}

func decodeOutcome(s *structpb.Struct) solver.Outcome {
	f := s.GetFields()
	return solver.Outcome{
		Status:  solver.Status(f["status"].GetStringValue()),
		Models:  int(f["models"].GetNumberValue()),
		Elapsed: elapsedOf(s),
	}
}

// #endregion event-codec
