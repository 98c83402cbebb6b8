package secrets

import (
	"strings"

	"go.uber.org/zap"
)

// Resolver checks its sources in the order given at construction.
type Resolver struct {
	sources []Source
	logger  *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger attaches a logger. Only names and provenance are ever logged.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over sources, highest priority first.
func NewResolver(sources []Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		sources: append([]Source(nil), sources...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve binds every name or fails with a *MissingConfigurationError that
// lists all unresolved names in request order. Duplicates are resolved once.
func (r *Resolver) Resolve(names ...string) (Bindings, error) {
	seen := make(map[string]struct{}, len(names))
	resolved := make([]Binding, 0, len(names))
	var missing []string

	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		binding, ok := r.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved = append(resolved, binding)
	}

	if len(missing) > 0 {
		r.logger.Error("required secrets unresolved", zap.Strings("missing", missing))
		return Bindings{}, &MissingConfigurationError{Keys: missing}
	}
	return NewBindings(resolved), nil
}

// Lookup checks the sources for a single name. Blank values are treated as
// absent and surrounding whitespace is trimmed.
func (r *Resolver) Lookup(name string) (Binding, bool) {
	for _, source := range r.sources {
		raw, ok := source.Lookup(name)
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		r.logger.Debug("secret resolved",
			zap.String("name", name),
			zap.String("source", string(source.Provenance())),
		)
		return Binding{Name: name, Value: value, Provenance: source.Provenance()}, true
	}
	return Binding{}, false
}
