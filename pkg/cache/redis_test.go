package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-announcement-api/pkg/config"
)

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	host, portStr, found := strings.Cut(mr.Addr(), ":")
	require.True(t, found)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: true, Host: host, Port: port})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
}
