package provider

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

// grpcTransport is the shared connection to the LLM sidecar used by both
// TextLLMClient and VisionLLMClient. No protoc-generated service stubs
// ship with this service, so every call is carried as a
// google.protobuf.Struct — the one message type the protobuf runtime can
// marshal without codegen — through grpc.ClientConn.Invoke directly.
type grpcTransport struct {
	conn *grpc.ClientConn
}

// dialLLM opens an insecure (plaintext) connection to the LLM sidecar.
// The service is expected to run alongside the pipeline, not across a
// network boundary; upgrade to TLS credentials if that changes.
func dialLLM(addr string) (*grpcTransport, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing llm service at %s: %w", addr, err)
	}
	return &grpcTransport{conn: conn}, nil
}

func (t *grpcTransport) invoke(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	reqStruct, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	reply := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, method, reqStruct, reply); err != nil {
		return nil, err
	}
	return reply.AsMap(), nil
}

func (t *grpcTransport) Close() error {
	return t.conn.Close()
}

// classifyGRPCError maps a gRPC status code onto the pipeline's three-way
// error taxonomy (§7).
func classifyGRPCError(provider, operation string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return model.NewProviderError(model.KindTransient, provider, operation, err)
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return model.NewProviderError(model.KindQuotaExceeded, provider, operation, err)
	case codes.InvalidArgument, codes.NotFound, codes.Unimplemented, codes.PermissionDenied, codes.Unauthenticated:
		return model.NewProviderError(model.KindPermanent, provider, operation, err)
	default:
		return model.NewProviderError(model.KindTransient, provider, operation, err)
	}
}
