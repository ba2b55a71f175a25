package approvals

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
)

// Executor performs the side effect of an approved action. Handlers are
// supplied by the feature module that owns the action key; this package
// never hard-codes business logic for specific actions.
type Executor func(ctx context.Context, contextID *string, contextData map[string]string) error

// Registry maps action keys to their auto-execution handlers. Registration
// happens during startup wiring; lookups may run concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds an executor to an action key. Re-registering a key replaces
// the previous handler.
func (r *Registry) Register(actionKey string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[actionKey] = exec
}

// Lookup returns the executor for the action key, if any.
func (r *Registry) Lookup(actionKey string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[actionKey]
	return exec, ok
}

// Validate cross-checks the registry against the catalog at startup: every
// non-manual action must have a handler, and every registered key must be a
// known action. A gated action nobody can fulfil is a deployment mistake
// better caught at boot than discovered by a reviewer.
func (r *Registry) Validate(cat *catalog.Catalog) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, key := range cat.Keys(catalog.KindAction) {
		node, err := cat.Lookup(key)
		if err != nil {
			return err
		}
		if node.Manual {
			continue
		}
		if _, ok := r.executors[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("approvals: actions without executors: %v", missing)
	}

	var unknown []string
	for key := range r.executors {
		node, err := cat.Lookup(key)
		if err != nil {
			unknown = append(unknown, key)
			continue
		}
		if node.Kind != catalog.KindAction {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("approvals: executors registered for non-action keys: %v", unknown)
	}
	return nil
}
