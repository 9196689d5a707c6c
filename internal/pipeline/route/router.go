// internal/pipeline/route/router.go
package route

import (
	"bedrock-router/internal/common/config"
	apperrors "bedrock-router/internal/common/errors"
)

// ResourceRef identifies the inference backend a request is dispatched to.
type ResourceRef struct {
	AgentID         string
	AgentAliasID    string
	KnowledgeBaseID string
}

// Table maps application names to backend resources. The table is built once
// from configuration at startup and never mutated, so lookups are safe from
// any goroutine.
//
// A "*" entry acts as an explicit catch-all for otherwise unmapped
// applications. Absence of both a direct entry and a wildcard is a routing
// error, never a silent fallback.
type Table struct {
	routes   map[string]ResourceRef
	wildcard *ResourceRef
}

func NewTable(cfg config.RoutingConfig) *Table {
	t := &Table{routes: make(map[string]ResourceRef, len(cfg.Applications))}

	for name, rc := range cfg.Applications {
		ref := ResourceRef{
			AgentID:         rc.AgentID,
			AgentAliasID:    rc.AgentAliasID,
			KnowledgeBaseID: rc.KnowledgeBaseID,
		}
		if name == "*" {
			t.wildcard = &ref
			continue
		}
		t.routes[name] = ref
	}

	return t
}

// Resolve returns the backend resource for an application name.
func (t *Table) Resolve(appName string) (ResourceRef, error) {
	if ref, ok := t.routes[appName]; ok {
		return ref, nil
	}
	if t.wildcard != nil {
		return *t.wildcard, nil
	}
	return ResourceRef{}, apperrors.NewRoutingUnconfigured(appName)
}

// Applications lists the explicitly configured application names. Used for
// startup logging.
func (t *Table) Applications() []string {
	names := make([]string, 0, len(t.routes))
	for name := range t.routes {
		names = append(names, name)
	}
	return names
}

// HasWildcard reports whether a catch-all route is configured.
func (t *Table) HasWildcard() bool {
	return t.wildcard != nil
}
