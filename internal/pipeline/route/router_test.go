// internal/pipeline/route/router_test.go
package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-router/internal/common/config"
	apperrors "bedrock-router/internal/common/errors"
)

func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		Applications: map[string]config.RouteConfig{
			"webapp1": {AgentID: "AGENT1", AgentAliasID: "ALIAS1", KnowledgeBaseID: "KB1"},
			"webapp2": {AgentID: "AGENT2", AgentAliasID: "ALIAS2"},
		},
	}
}

func TestTable_Resolve_KnownApplication(t *testing.T) {
	table := NewTable(testRoutingConfig())

	ref, err := table.Resolve("webapp1")
	require.NoError(t, err)
	assert.Equal(t, "AGENT1", ref.AgentID)
	assert.Equal(t, "ALIAS1", ref.AgentAliasID)
	assert.Equal(t, "KB1", ref.KnowledgeBaseID)
}

func TestTable_Resolve_UnknownApplicationFails(t *testing.T) {
	table := NewTable(testRoutingConfig())

	ref, err := table.Resolve("unknown-app")
	require.Error(t, err)
	assert.Equal(t, ResourceRef{}, ref)
	assert.Equal(t, apperrors.KindRouting, apperrors.KindOf(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeRoutingUnconfigured, appErr.Code)
}

func TestTable_Resolve_NoImplicitFallback(t *testing.T) {
	// Even with routes configured, an unmapped name must not resolve to any
	// of them.
	table := NewTable(testRoutingConfig())

	_, err := table.Resolve("webapp3")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestTable_Resolve_ExplicitWildcard(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.Applications["*"] = config.RouteConfig{AgentID: "DEFAULT", AgentAliasID: "DEFAULT-ALIAS"}
	table := NewTable(cfg)

	require.True(t, table.HasWildcard())

	// Direct entries win over the wildcard.
	ref, err := table.Resolve("webapp1")
	require.NoError(t, err)
	assert.Equal(t, "AGENT1", ref.AgentID)

	ref, err = table.Resolve("anything-else")
	require.NoError(t, err)
	assert.Equal(t, "DEFAULT", ref.AgentID)
}

func TestTable_Resolve_CaseSensitive(t *testing.T) {
	table := NewTable(testRoutingConfig())

	_, err := table.Resolve("Webapp1")
	assert.Error(t, err)
}

func TestTable_Applications(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.Applications["*"] = config.RouteConfig{AgentID: "DEFAULT"}
	table := NewTable(cfg)

	names := table.Applications()
	assert.ElementsMatch(t, []string{"webapp1", "webapp2"}, names)
}
