package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Level string  `json:"level"`
	Score float64 `json:"score"`
}

// newTestClient connects to PYDVERIFY_TEST_REDIS_HOST (port 6379, db 15)
// and skips when it is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("PYDVERIFY_TEST_REDIS_HOST")
	if host == "" {
		t.Skip("PYDVERIFY_TEST_REDIS_HOST not set")
	}
	port := 6379
	if p := os.Getenv("PYDVERIFY_TEST_REDIS_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		port = n
	}

	client, err := NewClient(host, port, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.InvalidateVerdicts(context.Background())
		client.Close()
	})
	return client
}

func TestVerdictRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var got verdict
	found, err := client.GetVerdict(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetVerdict(ctx, "k1", verdict{Level: "verified", Score: 0.95}, time.Minute))

	found, err = client.GetVerdict(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, verdict{Level: "verified", Score: 0.95}, got)
}

func TestInvalidateVerdicts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetVerdict(ctx, "a", verdict{Level: "outdated"}, time.Minute))
	require.NoError(t, client.SetVerdict(ctx, "b", verdict{Level: "verified"}, time.Minute))
	require.NoError(t, client.InvalidateVerdicts(ctx))

	var got verdict
	found, err := client.GetVerdict(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient("127.0.0.1", 1, "", 0)
	assert.Error(t, err)
}
