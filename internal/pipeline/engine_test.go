package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pydverify/backend/internal/catalog"
	"github.com/pydverify/backend/internal/enhancer"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/verifier"
)

type memoryCache struct {
	data    map[string][]byte
	gets    int
	sets    int
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) GetVerdict(ctx context.Context, key string, dst any) (bool, error) {
	m.gets++
	if m.failGet {
		return false, errors.New("connection refused")
	}
	data, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (m *memoryCache) SetVerdict(ctx context.Context, key string, v any, ttl time.Duration) error {
	m.sets++
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func newEngine(opts ...Option) *Engine {
	c := catalog.Default()
	return NewEngine(verifier.New(c, nil), enhancer.New(c), opts...)
}

func TestAssessLegacyResponse(t *testing.T) {
	e := newEngine()
	text := "class Config:\n    extra = 'forbid'\nprint(model.dict())"

	a := e.Assess(context.Background(), Request{Query: "How do I configure a model?", Response: text})

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, text, a.OriginalResponse)
	assert.True(t, a.ImprovementNeeded)
	assert.True(t, a.Changed)
	assert.Equal(t, verifier.LevelOutdated, a.VerificationResult.AccuracyLevel)
	assert.Contains(t, a.EnhancedResponse, "model.model_dump()")
	assert.False(t, a.Cached)
}

func TestAssessVerifiedResponse(t *testing.T) {
	e := newEngine()
	text := "Use model_validate to parse input."

	a := e.Assess(context.Background(), Request{Response: text})

	assert.False(t, a.ImprovementNeeded)
	assert.False(t, a.Changed)
	assert.Equal(t, text, a.EnhancedResponse)
}

func TestAssessUsesCache(t *testing.T) {
	cache := newMemoryCache()
	e := newEngine(WithCache(cache, time.Minute))
	req := Request{Response: "print(model.dict())"}
	snap := knowledge.Snapshot{VersionInfo: &knowledge.VersionInfo{Version: "2.11.0"}}

	first := e.AssessWith(context.Background(), req, snap)
	require.Len(t, cache.data, 1)
	for _, raw := range cache.data {
		var stored map[string]any
		require.NoError(t, json.Unmarshal(raw, &stored))
		assert.NotEmpty(t, stored)
	}

	second := e.AssessWith(context.Background(), req, snap)

	assert.Equal(t, 1, cache.sets)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.EnhancedResponse, second.EnhancedResponse)
	assert.Equal(t, first.VerificationResult, second.VerificationResult)

	other := knowledge.Snapshot{VersionInfo: &knowledge.VersionInfo{Version: "2.12.0"}}
	third := e.AssessWith(context.Background(), req, other)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, cache.sets)
}

func TestAssessCacheErrorFallsThrough(t *testing.T) {
	cache := newMemoryCache()
	cache.failGet = true
	e := newEngine(WithCache(cache, time.Minute))

	a := e.Assess(context.Background(), Request{Response: "print(model.dict())"})

	assert.False(t, a.Cached)
	assert.Equal(t, verifier.LevelOutdated, a.VerificationResult.AccuracyLevel)
}

func TestVerifyOnly(t *testing.T) {
	r := newEngine().Verify("Use model_dump.")
	assert.Equal(t, verifier.LevelVerified, r.AccuracyLevel)
}
