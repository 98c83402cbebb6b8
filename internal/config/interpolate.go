package config

import (
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/release-desk/internal/secrets"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolator substitutes ${NAME} placeholders in YAML scalar values.
type interpolator struct {
	resolver *secrets.Resolver
	bound    []secrets.Binding
	seen     map[string]bool
	missing  []string
}

func newInterpolator(resolver *secrets.Resolver) *interpolator {
	return &interpolator{
		resolver: resolver,
		seen:     make(map[string]bool),
	}
}

// walk rewrites every scalar under node in document order.
func (in *interpolator) walk(node *yaml.Node) {
	if node == nil {
		return
	}
	if node.Kind == yaml.ScalarNode {
		in.scalar(node)
		return
	}
	for _, child := range node.Content {
		in.walk(child)
	}
}

func (in *interpolator) scalar(node *yaml.Node) {
	if !placeholderPattern.MatchString(node.Value) {
		return
	}
	node.Value = placeholderPattern.ReplaceAllStringFunc(node.Value, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		binding, ok := in.resolver.Lookup(name)
		if !ok {
			if !in.seen[name] {
				in.seen[name] = true
				in.missing = append(in.missing, name)
			}
			return match
		}
		if !in.seen[name] {
			in.seen[name] = true
			in.bound = append(in.bound, binding)
		}
		return binding.Value
	})
	if node.Style != 0 {
		return
	}
	if resolvesToNull(node.Value) {
		// a secret reading "null" or "~" is still that text
		node.Tag = "!!str"
		return
	}
	// let the decoder re-resolve ints and bools
	node.Tag = ""
}

func resolvesToNull(value string) bool {
	switch value {
	case "", "~", "null", "Null", "NULL":
		return true
	}
	return false
}
