package redis

import (
	"context"
	"strconv"
	"testing"

	"taixiu-dealer/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s, _ := newTestClient(t)

	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	cfg := config.RedisConfig{Host: s.Host(), Port: port}
	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
}
