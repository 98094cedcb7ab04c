// Package variables provides the template variable registry: a name-keyed
// table of resolver implementations that supply values for template
// placeholders per request. Resolution is best-effort: a failing or missing
// resolver yields a visible marker in the rendered text instead of aborting
// the pipeline.
package variables

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"stageflow_backend/platform/logger"
)

// Well-known context keys shared between the pipeline and resolvers.
const (
	KeyBusinessID     = "business_id"
	KeyUserID         = "user_id"
	KeyConversationID = "conversation_id"
	KeyMessage        = "message"
)

// Context is the per-request value set handed to resolvers. The registry
// passes each resolver only the keys it declares via RequiredKeys.
type Context map[string]string

// Resolver supplies the value for one variable name. Implementations declare
// the context keys they need up front; the registry never guesses.
type Resolver interface {
	// Name returns the variable name this resolver serves.
	Name() string
	// RequiredKeys lists the context keys Resolve needs.
	RequiredKeys() []string
	// Resolve produces the variable value from the filtered context.
	Resolve(ctx context.Context, rc Context) (string, error)
}

// funcResolver adapts a function to the Resolver interface.
type funcResolver struct {
	name string
	keys []string
	fn   func(ctx context.Context, rc Context) (string, error)
}

func (f *funcResolver) Name() string           { return f.name }
func (f *funcResolver) RequiredKeys() []string { return f.keys }
func (f *funcResolver) Resolve(ctx context.Context, rc Context) (string, error) {
	return f.fn(ctx, rc)
}

// NewResolver creates a Resolver from a function and its declared keys.
func NewResolver(name string, keys []string, fn func(ctx context.Context, rc Context) (string, error)) Resolver {
	return &funcResolver{name: name, keys: keys, fn: fn}
}

// Registry is the process-wide name→resolver table.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
	log       *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		resolvers: make(map[string]Resolver),
		log:       log,
	}
}

// Register associates a resolver with its variable name. Registration is
// idempotent per name: re-registration silently replaces the previous
// resolver (logged at debug level).
func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resolvers[res.Name()]; exists && r.log != nil {
		r.log.Debug("variable resolver replaced", "name", res.Name())
	}
	r.resolvers[res.Name()] = res
}

// IsRegistered reports whether a resolver exists for the given name.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolvers[name]
	return ok
}

// RegisteredNames returns all registered variable names, sorted.
func (r *Registry) RegisteredNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	doublePlaceholderRe = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	singlePlaceholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
)

// ExtractVariables scans template text for {name} and {{name}} placeholders
// and returns the union of referenced names, sorted, each exactly once.
// Single-brace matches that overlap a double-brace match are excluded so the
// same reference is not resolved twice.
func ExtractVariables(text string) []string {
	seen := make(map[string]struct{})

	doubleSpans := doublePlaceholderRe.FindAllStringSubmatchIndex(text, -1)
	for _, span := range doubleSpans {
		seen[text[span[2]:span[3]]] = struct{}{}
	}

	for _, span := range singlePlaceholderRe.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(span[0], span[1], doubleSpans) {
			continue
		}
		seen[text[span[2]:span[3]]] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func overlapsAny(start, end int, spans [][]int) bool {
	for _, span := range spans {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}

// ResolveAll produces a value for every requested name. Lookup order per name:
// a registered resolver, then a raw context value under that key (this is how
// extraction-step fields reach templates), then an undefined-variable marker.
// Resolver failures become error markers; resolution never aborts.
func (r *Registry) ResolveAll(ctx context.Context, names []string, rc Context) map[string]string {
	values := make(map[string]string, len(names))

	for _, name := range names {
		r.mu.RLock()
		res, ok := r.resolvers[name]
		r.mu.RUnlock()

		if !ok {
			if raw, present := rc[name]; present {
				values[name] = raw
				continue
			}
			values[name] = fmt.Sprintf("[Undefined variable: %s]", name)
			continue
		}

		filtered, err := filterContext(rc, res.RequiredKeys())
		if err != nil {
			values[name] = fmt.Sprintf("[Error: %s]", err)
			continue
		}

		value, err := res.Resolve(ctx, filtered)
		if err != nil {
			if r.log != nil {
				r.log.Warn("variable resolution failed", "name", name, "error", err)
			}
			values[name] = fmt.Sprintf("[Error: %s]", err)
			continue
		}
		values[name] = value
	}

	return values
}

// filterContext returns a context restricted to the declared keys, failing if
// a declared key is absent.
func filterContext(rc Context, keys []string) (Context, error) {
	filtered := make(Context, len(keys))
	for _, key := range keys {
		value, ok := rc[key]
		if !ok {
			return nil, fmt.Errorf("missing context key %q", key)
		}
		filtered[key] = value
	}
	return filtered, nil
}
