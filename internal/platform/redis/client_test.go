package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestApplyPool(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/0")
	require.NoError(t, err)
	urlDial := opts.DialTimeout

	applyPool(opts, config.RedisConfig{PoolSize: 20, ReadTimeout: 2 * time.Second})
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, urlDial, opts.DialTimeout, "unset values keep the URL defaults")
}
