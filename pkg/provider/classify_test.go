package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
)

func TestClassifyGRPCError_ResourceExhaustedIsQuotaExceeded(t *testing.T) {
	err := classifyGRPCError("text-llm", "complete", status.Error(codes.ResourceExhausted, "quota"))
	assert.True(t, model.IsKind(err, model.KindQuotaExceeded))
}

func TestClassifyGRPCError_InvalidArgumentIsPermanent(t *testing.T) {
	err := classifyGRPCError("text-llm", "complete", status.Error(codes.InvalidArgument, "bad prompt"))
	assert.True(t, model.IsKind(err, model.KindPermanent))
}

func TestClassifyGRPCError_UnavailableIsTransient(t *testing.T) {
	err := classifyGRPCError("text-llm", "complete", status.Error(codes.Unavailable, "down"))
	assert.True(t, model.IsKind(err, model.KindTransient))
}

func TestClassifyGRPCError_NonStatusErrorIsTransient(t *testing.T) {
	err := classifyGRPCError("text-llm", "complete", errors.New("dial failed"))
	assert.True(t, model.IsKind(err, model.KindTransient))
}

func TestClassifyBrowserError_TimeoutIsPermanent(t *testing.T) {
	err := classifyBrowserError(context.DeadlineExceeded)
	assert.True(t, model.IsKind(err, model.KindPermanent))
}

func TestClassifyBrowserError_ConnectionRefusedIsPermanent(t *testing.T) {
	err := classifyBrowserError(errors.New("dial tcp: connection refused"))
	assert.True(t, model.IsKind(err, model.KindPermanent))
}

func TestClassifyBrowserError_OtherIsTransient(t *testing.T) {
	err := classifyBrowserError(errors.New("some transient rod error"))
	assert.True(t, model.IsKind(err, model.KindTransient))
}
