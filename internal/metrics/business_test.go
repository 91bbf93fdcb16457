package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")

	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestBusinessMetrics_RecordOperation(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("record successful operation", func(t *testing.T) {
		bm.RecordOperation(context.Background(), "media", "upload", "success")
	})

	t.Run("record failed operation", func(t *testing.T) {
		bm.RecordOperation(context.Background(), "media", "stream", "error")
	})

	t.Run("record multiple domains", func(t *testing.T) {
		bm.RecordOperation(context.Background(), "jobs", "create", "success")
		bm.RecordOperation(context.Background(), "keys", "keypair_reset", "success")
		bm.RecordOperation(context.Background(), "media", "download", "error")
	})
}

func TestBusinessMetrics_RecordDuration(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	bm.RecordDuration(context.Background(), "media", "stream", 123*time.Millisecond, "success")
	bm.RecordDuration(context.Background(), "jobs", "create", 5*time.Millisecond, "error")
}

func TestBusinessMetrics_RecordStreamedBytes(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	bm.RecordStreamedBytes(context.Background(), "stream", "encrypted", 64*1024)
	bm.RecordStreamedBytes(context.Background(), "download", "plaintext", 1024)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	bm := NewNoOpBusinessMetrics()

	// None of these should panic
	bm.RecordOperation(context.Background(), "media", "upload", "success")
	bm.RecordDuration(context.Background(), "media", "upload", time.Second, "success")
	bm.RecordStreamedBytes(context.Background(), "stream", "encrypted", 1)
}
