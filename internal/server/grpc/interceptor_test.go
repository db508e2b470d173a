package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRecoveryInterceptor_PanicBecomesInternal(t *testing.T) {
	s := NewGRPCServer("", logging.Nop())

	resp, err := s.recoveryInterceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRecoveryInterceptor_PassesThrough(t *testing.T) {
	s := NewGRPCServer("", logging.Nop())

	resp, err := s.recoveryInterceptor(context.Background(), "req", testInfo, func(_ context.Context, req any) (any, error) {
		return req, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "req", resp)
}

func TestLoggingInterceptor_ReturnsHandlerResult(t *testing.T) {
	s := NewGRPCServer("", logging.Nop())

	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"ok", nil, codes.OK},
		{"status error", status.Error(codes.NotFound, "missing"), codes.NotFound},
		{"plain error", errors.New("boom"), codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			resp, err := s.loggingInterceptor(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
				called = true
				return "resp", tt.err
			})

			assert.True(t, called)
			assert.Equal(t, "resp", resp)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}
