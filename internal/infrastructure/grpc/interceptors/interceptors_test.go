package interceptors_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/narwhalmedia/catalog/internal/infrastructure/grpc/interceptors"
	"github.com/narwhalmedia/catalog/pkg/logger"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestUnaryRecoveryInterceptor(t *testing.T) {
	intercept := interceptors.UnaryRecoveryInterceptor(logger.NewNoop())

	resp, err := intercept(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnaryLoggingInterceptor_PassesThrough(t *testing.T) {
	intercept := interceptors.UnaryLoggingInterceptor(logger.NewNoop())
	want := errors.New("unavailable")

	resp, err := intercept(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", want
	})

	assert.Equal(t, "resp", resp)
	assert.ErrorIs(t, err, want)
}
