package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: IssuePaymentMethod}

	tests := []struct {
		name         string
		handler      grpc.UnaryHandler
		expectedCode codes.Code
		expectedLog  string
	}{
		{
			name: "Success",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return "ok", nil
			},
			expectedCode: codes.OK,
			expectedLog:  "grpc call",
		},
		{
			name: "Rejected",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.PermissionDenied, "not authorized")
			},
			expectedCode: codes.PermissionDenied,
			expectedLog:  "grpc call rejected",
		},
		{
			name: "Panic",
			handler: func(ctx context.Context, req interface{}) (interface{}, error) {
				panic("boom")
			},
			expectedCode: codes.Internal,
			expectedLog:  "grpc call failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			interceptor := LoggingInterceptor(zap.New(core))

			resp, err := interceptor(context.Background(), "req", info, tt.handler)

			assert.Equal(t, tt.expectedCode, status.Code(err))
			if tt.expectedCode == codes.OK {
				assert.Equal(t, "ok", resp)
			} else {
				assert.Nil(t, resp)
			}

			entries := logs.FilterMessage(tt.expectedLog).All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, IssuePaymentMethod, entries[0].ContextMap()["method"])
			}
		})
	}
}

func TestLoggingInterceptor_LogsInternalCause(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: IssuePaymentMethod}
	core, logs := observer.New(zap.DebugLevel)
	interceptor := LoggingInterceptor(zap.New(core))

	_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, mapError(errors.New("failed to save ticket: disk I/O error"))
	})

	assert.Equal(t, "internal error", status.Convert(err).Message())

	entries := logs.FilterMessage("grpc call failed").All()
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0].ContextMap()["error"], "disk I/O error")
	}
}
