package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/config"
)

func TestGetScope_Missing(t *testing.T) {
	scope, ok := GetScope(context.Background())
	assert.False(t, ok)
	assert.Nil(t, scope)
}

func TestGetScope_ReleasedScopeIsNotUsable(t *testing.T) {
	ctx := SetScope(context.Background(), &Scope{})
	_, ok := GetScope(ctx)
	assert.False(t, ok)
}

func TestScope_CloseIsIdempotent(t *testing.T) {
	s := &Scope{}
	s.Close()
	s.Close()
	assert.Nil(t, s.Conn)
}

func TestNewRedisClient_DisabledWithoutHost(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, int32(25), orDefault(int32(0), int32(25)))
	assert.Equal(t, int32(5), orDefault(int32(5), int32(25)))
}
