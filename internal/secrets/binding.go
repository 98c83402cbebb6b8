package secrets

import (
	"fmt"
	"strings"
)

// Provenance tags the source a binding was resolved from.
type Provenance string

const (
	ProvenancePlatform Provenance = "platform"
	ProvenanceEnv      Provenance = "env"
	ProvenanceFile     Provenance = "file"
)

// Binding is a resolved secret. Its Value must never be logged or persisted.
type Binding struct {
	Name       string
	Value      string
	Provenance Provenance
}

// String renders the binding without its value.
func (b Binding) String() string {
	return fmt.Sprintf("%s(%s)", b.Name, b.Provenance)
}

// Bindings is the immutable result of a resolution pass.
type Bindings struct {
	ordered []Binding
	index   map[string]int
}

// NewBindings builds an immutable set from list. When a name repeats, the
// first occurrence is kept.
func NewBindings(list []Binding) Bindings {
	b := Bindings{
		ordered: make([]Binding, 0, len(list)),
		index:   make(map[string]int, len(list)),
	}
	for _, binding := range list {
		if _, dup := b.index[binding.Name]; dup {
			continue
		}
		b.index[binding.Name] = len(b.ordered)
		b.ordered = append(b.ordered, binding)
	}
	return b
}

// Get returns the resolved value for name.
func (b Bindings) Get(name string) (string, bool) {
	binding, ok := b.Binding(name)
	if !ok {
		return "", false
	}
	return binding.Value, true
}

// Binding returns the full binding for name.
func (b Bindings) Binding(name string) (Binding, bool) {
	i, ok := b.index[name]
	if !ok {
		return Binding{}, false
	}
	return b.ordered[i], true
}

// All returns a copy of the bindings in resolution order.
func (b Bindings) All() []Binding {
	out := make([]Binding, len(b.ordered))
	copy(out, b.ordered)
	return out
}

// Names returns the bound names in resolution order.
func (b Bindings) Names() []string {
	out := make([]string, 0, len(b.ordered))
	for _, binding := range b.ordered {
		out = append(out, binding.Name)
	}
	return out
}

// Values returns every resolved value. Intended for log redaction only.
func (b Bindings) Values() []string {
	out := make([]string, 0, len(b.ordered))
	for _, binding := range b.ordered {
		out = append(out, binding.Value)
	}
	return out
}

// Len reports the number of bindings.
func (b Bindings) Len() int {
	return len(b.ordered)
}

// String lists names and provenance, never values.
func (b Bindings) String() string {
	parts := make([]string, 0, len(b.ordered))
	for _, binding := range b.ordered {
		parts = append(parts, binding.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Merge returns a new set with other's bindings appended. Names already
// present in b keep their existing binding.
func (b Bindings) Merge(other Bindings) Bindings {
	return NewBindings(append(b.All(), other.ordered...))
}
