package s3store

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOptions tests that functional options apply to the configuration.
func TestOptions(t *testing.T) {
	cfg := &Config{PartSize: defaultPartSize}
	opts := []Option{
		WithRegion("eu-west-1"),
		WithEndpoint("http://localhost:9000"),
		WithStaticCredentials("access", "secret", "token"),
		WithPathStyle(true),
		WithTimeout(30 * time.Second),
		WithPartSize(16 * 1024 * 1024),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.Equal(t, "access", cfg.AccessKey)
	assert.Equal(t, "secret", cfg.SecretKey)
	assert.Equal(t, "token", cfg.SessionToken)
	assert.True(t, cfg.PathStyle)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.EqualValues(t, 16*1024*1024, cfg.PartSize)
}

// TestWithPartSize_Minimum tests that sub-minimum part sizes are ignored.
func TestWithPartSize_Minimum(t *testing.T) {
	cfg := &Config{PartSize: defaultPartSize}
	WithPartSize(1024)(cfg)
	assert.EqualValues(t, defaultPartSize, cfg.PartSize)
}

// TestNew_WithClient tests construction with an injected SDK client.
func TestNew_WithClient(t *testing.T) {
	client := s3.New(s3.Options{Region: "us-east-1"})

	store, err := New(context.Background(), WithClient(client))
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Same(t, client, store.client)
	assert.NotNil(t, store.uploader)
	assert.EqualValues(t, defaultPartSize, store.partSize)
}
