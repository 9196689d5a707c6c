// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-router/internal/common/config"
	"bedrock-router/internal/common/database"
	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/common/logger"
	"bedrock-router/internal/pipeline/batch"
	"bedrock-router/internal/pipeline/cachestore"
	"bedrock-router/internal/pipeline/invoke"
	"bedrock-router/internal/pipeline/route"
)

// scriptedAgent plays back canned chunked responses keyed by input text,
// standing in for the Bedrock runtime so the full pipeline path runs
// in-process.
type scriptedAgent struct {
	responses map[string][][]byte
	calls     int
}

type scriptedStream struct {
	chunks [][]byte
	idx    int
}

func (s *scriptedStream) Next(_ context.Context) ([]byte, error) {
	if s.idx >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *scriptedStream) Close() error { return nil }

func (a *scriptedAgent) InvokeAgent(_ context.Context, _ route.ResourceRef, _, inputText string) (invoke.ChunkStream, error) {
	a.calls++
	chunks, ok := a.responses[inputText]
	if !ok {
		return nil, apperrors.NewInvokeBackend(fmt.Errorf("no scripted response for %q", inputText))
	}
	return &scriptedStream{chunks: chunks}, nil
}

func e2eConfig() config.Config {
	return config.Config{
		Cache: config.CacheConfig{
			TTLSeconds:          3600,
			IncludeSessionInKey: true,
			Accelerator: config.AcceleratorConfig{
				Enabled:      true,
				MaxCostBytes: 1 << 20,
				NumCounters:  1000,
			},
		},
		Routing: config.RoutingConfig{
			Applications: map[string]config.RouteConfig{
				"webapp1": {AgentID: "AGENT1", AgentAliasID: "ALIAS1"},
			},
		},
		Pipeline: config.PipelineConfig{
			MaxBatchSize:   10,
			InvokeTimeout:  5000,
			MaxRetries:     1,
			InitialBackoff: 1,
			MaxBackoff:     5,
		},
	}
}

func buildPipeline(t *testing.T, agent invoke.AgentAPI) (*batch.Coordinator, *miniredis.Miniredis) {
	t.Helper()

	cfg := e2eConfig()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { rdb.Close() })

	store, err := cachestore.New(rdb, cfg.Cache, log)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	invoker := invoke.NewInvoker(agent, cfg.Pipeline, log)
	table := route.NewTable(cfg.Routing)

	return batch.NewCoordinator(store, table, invoker, cfg, log), mr
}

func requestItem(t *testing.T, id, app, input string) batch.RawItem {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"application_name": app,
		"input_text":       input,
		"session_id":       "session-1",
	})
	require.NoError(t, err)
	return batch.RawItem{ID: id, Body: body}
}

func TestPipeline_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	agent := &scriptedAgent{responses: map[string][][]byte{
		"what is the capital of France?": {[]byte("The capital "), []byte("of France "), []byte("is Paris.")},
	}}
	coord, _ := buildPipeline(t, agent)
	ctx := context.Background()

	item := requestItem(t, "m1", "webapp1", "what is the capital of France?")

	// Cold path: miss, invoke, cache fill.
	outcomes, err := coord.ProcessBatch(ctx, []batch.RawItem{item})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, batch.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, "The capital of France is Paris.", outcomes[0].Body)
	assert.False(t, outcomes[0].Cached)

	// Warm path: identical request served from cache without a backend call.
	outcomes, err = coord.ProcessBatch(ctx, []batch.RawItem{item})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, "The capital of France is Paris.", outcomes[0].Body)
	assert.True(t, outcomes[0].Cached)
	assert.Equal(t, 1, agent.calls)
}

func TestPipeline_EndToEnd_MixedBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	agent := &scriptedAgent{responses: map[string][][]byte{
		"q1": {[]byte("a1")},
		"q3": {[]byte("a3")},
	}}
	coord, _ := buildPipeline(t, agent)

	items := []batch.RawItem{
		requestItem(t, "m1", "webapp1", "q1"),
		{ID: "m2", Body: []byte(`{"application_name":"webapp1","session_id":"session-1"}`)},
		requestItem(t, "m3", "webapp1", "q3"),
		requestItem(t, "m4", "no-such-app", "q4"),
	}

	outcomes, err := coord.ProcessBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, batch.StatusSuccess, outcomes[0].Status)
	assert.Equal(t, "a1", outcomes[0].Body)

	assert.Equal(t, batch.StatusError, outcomes[1].Status)
	assert.Equal(t, apperrors.KindValidation, outcomes[1].ErrorKind)

	assert.Equal(t, batch.StatusSuccess, outcomes[2].Status)
	assert.Equal(t, "a3", outcomes[2].Body)

	assert.Equal(t, batch.StatusError, outcomes[3].Status)
	assert.Equal(t, apperrors.KindRouting, outcomes[3].ErrorKind)
}

func TestPipeline_EndToEnd_CacheSurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	cfg := e2eConfig()
	log := logger.NewTestLogger(t)
	mr := miniredis.RunT(t)

	newCoordinator := func(agent invoke.AgentAPI) *batch.Coordinator {
		rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
		t.Cleanup(func() { rdb.Close() })
		store, err := cachestore.New(rdb, cfg.Cache, log)
		require.NoError(t, err)
		t.Cleanup(store.Close)
		return batch.NewCoordinator(store, route.NewTable(cfg.Routing), invoke.NewInvoker(agent, cfg.Pipeline, log), cfg, log)
	}

	agent := &scriptedAgent{responses: map[string][][]byte{"q1": {[]byte("a1")}}}
	item := requestItem(t, "m1", "webapp1", "q1")

	outcomes, err := newCoordinator(agent).ProcessBatch(context.Background(), []batch.RawItem{item})
	require.NoError(t, err)
	require.Equal(t, batch.StatusSuccess, outcomes[0].Status)

	// A rebuilt pipeline over the same Redis still serves the cached entry.
	restarted := newCoordinator(&scriptedAgent{responses: map[string][][]byte{}})
	outcomes, err = restarted.ProcessBatch(context.Background(), []batch.RawItem{item})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusSuccess, outcomes[0].Status)
	assert.True(t, outcomes[0].Cached)
	assert.Equal(t, "a1", outcomes[0].Body)
}
