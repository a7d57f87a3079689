package redis

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/longshort/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())
}

func TestClient_DisabledIsHealthy(t *testing.T) {
	client := disabledClient(t)

	assert.NoError(t, client.Ping(context.Background()))
	assert.Empty(t, client.Addr())
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantAddr string
	}{
		{"host and port", config.RedisConfig{Host: "localhost", Port: "6379", Timeout: 3 * time.Second, PoolSize: 10}, "localhost:6379"},
		{"ipv6 host", config.RedisConfig{Host: "::1", Port: "6380", Timeout: time.Second, PoolSize: 4}, "[::1]:6380"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := options(tt.cfg)

			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.cfg.Timeout, opts.DialTimeout)
			assert.Equal(t, tt.cfg.Timeout, opts.ReadTimeout)
			assert.Equal(t, tt.cfg.Timeout, opts.WriteTimeout)
			assert.Equal(t, tt.cfg.PoolSize, opts.PoolSize)
		})
	}
}

func TestNewClient_UnreachableFails(t *testing.T) {
	// 아무도 듣지 않는 포트
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	_, err = New(context.Background(), &config.Config{
		Redis: config.RedisConfig{
			Enabled:  true,
			Host:     "127.0.0.1",
			Port:     port,
			Timeout:  200 * time.Millisecond,
			PoolSize: 1,
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+port)
}

func TestCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(disabledClient(t), "test")

	assert.False(t, cache.Enabled())
	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found, "disabled cache never hits")
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCache_NilClient(t *testing.T) {
	cache := NewCache(nil, "test")
	assert.False(t, cache.Enabled())
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"UniverseKey", UniverseKey("2024-01-15"), "universe:2024-01-15"},
		{"FactorKey", FactorKey("roe", "2024-01-15"), "factor:roe:2024-01-15"},
		{"WindowKey", WindowKey("bull_minus_bear", "2024-01-15", 3), "window:bull_minus_bear:2024-01-15:3"},
		{"LoadingsKey", LoadingsKey(0, "2024-01-15"), "risk:v0:2024-01-15"},
		{"StateKey", StateKey("long_short_equity"), "state:long_short_equity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}

	c := NewCache(nil, "longshort")
	assert.Equal(t, "longshort:cache:factor:roe:2024-01-15", c.fullKey(FactorKey("roe", "2024-01-15")))
}
