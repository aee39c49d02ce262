package runtime

import (
	"fmt"
	"strings"

	"github.com/rvs/workflow-nodes/internal/node"
)

// CredentialSource looks up stored credential sets by name.
type CredentialSource interface {
	Get(name string) (map[string]any, error)
}

// credentialResolver resolves a node's credential references, trying the
// credential source first and the workflow's inline sets second.
type credentialResolver struct {
	source CredentialSource
	inline map[string]map[string]any
	refs   map[string]string
}

func (r credentialResolver) resolve(credentialType string) (node.Credentials, error) {
	name := lookupFold(r.refs, credentialType)
	if name == "" {
		return nil, fmt.Errorf("no %s credential configured for node", credentialType)
	}

	var sourceErr error
	if r.source != nil {
		data, err := r.source.Get(name)
		if err == nil {
			return node.Credentials(data), nil
		}
		sourceErr = err
	}

	if data, ok := r.lookupInline(name); ok {
		return node.Credentials(data), nil
	}

	if sourceErr != nil {
		return nil, fmt.Errorf("resolving %s credential %q: %w", credentialType, name, sourceErr)
	}
	return nil, fmt.Errorf("%s credential %q not found", credentialType, name)
}

// lookupInline matches names case-insensitively since config keys are
// lower-cased when loaded.
func (r credentialResolver) lookupInline(name string) (map[string]any, bool) {
	data := lookupFold(r.inline, name)
	return data, data != nil
}

func lookupFold[V any](m map[string]V, key string) V {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	var zero V
	return zero
}
