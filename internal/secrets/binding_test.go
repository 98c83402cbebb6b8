package secrets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindings_StringHidesValues(t *testing.T) {
	b := NewBindings([]Binding{
		{Name: "SMTP_PASSWORD", Value: "s3cr3t", Provenance: ProvenancePlatform},
		{Name: "API_TOKEN", Value: "t0k3n", Provenance: ProvenanceEnv},
	})

	rendered := fmt.Sprintf("%v %s", b, b.All()[0])
	assert.NotContains(t, rendered, "s3cr3t")
	assert.NotContains(t, rendered, "t0k3n")
	assert.Contains(t, rendered, "SMTP_PASSWORD(platform)")
}

func TestBindings_CopiesAreIndependent(t *testing.T) {
	source := []Binding{{Name: "A", Value: "1", Provenance: ProvenanceEnv}}
	b := NewBindings(source)
	source[0].Value = "mutated"

	all := b.All()
	all[0].Value = "also-mutated"

	value, ok := b.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestBindings_MergeKeepsExisting(t *testing.T) {
	first := NewBindings([]Binding{{Name: "A", Value: "1", Provenance: ProvenancePlatform}})
	second := NewBindings([]Binding{
		{Name: "A", Value: "2", Provenance: ProvenanceEnv},
		{Name: "B", Value: "3", Provenance: ProvenanceFile},
	})

	merged := first.Merge(second)
	assert.Equal(t, []string{"A", "B"}, merged.Names())
	a, _ := merged.Get("A")
	assert.Equal(t, "1", a)
	assert.Equal(t, 1, first.Len())
}
