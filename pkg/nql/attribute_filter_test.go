package nql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neptune-ai/fetcher-go/pkg/attribute"
)

func TestAttributeFilterMustMatchRegexes(t *testing.T) {
	f := &AttributeFilter{
		NameEq:         []string{"config/lr", "metrics/acc+top1"},
		NameMatchesAll: []string{"^config/"},
	}

	got := f.MustMatchRegexes()
	require.Len(t, got, 2)
	assert.Equal(t, "^config/", got[0])
	assert.Equal(t, `^(config/lr|metrics/acc\+top1)$`, got[1])
}

func TestAttributeFilterEmptyCriteria(t *testing.T) {
	f := &AttributeFilter{}
	assert.Empty(t, f.MustMatchRegexes())
	assert.Empty(t, f.MustNotMatchRegexes())
	assert.Empty(t, f.WireTypes())
	require.NoError(t, f.Validate())
}

func TestAttributeFilterWireTypes(t *testing.T) {
	f := &AttributeFilter{TypeIn: []attribute.Type{attribute.TypeFloatSeries, attribute.TypeString}}
	assert.Equal(t, []string{"floatSeries", "string"}, f.WireTypes())
}

func TestAttributeFilterValidate(t *testing.T) {
	bad := &AttributeFilter{NameMatchesAll: []string{"("}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid attribute name regex")

	badNeg := &AttributeFilter{NameMatchesNone: []string{"["}}
	require.Error(t, badNeg.Validate())
}

func TestAttributeFilterOr(t *testing.T) {
	a := &AttributeFilter{NameEq: []string{"sys/name"}}
	b := &AttributeFilter{NameMatchesAll: []string{"^metrics/"}}
	c := &AttributeFilter{TypeIn: []attribute.Type{attribute.TypeFloat}}

	union := a.Or(b).Or(c)
	leaves := union.Leaves()
	require.Len(t, leaves, 3)
	assert.Same(t, a, leaves[0])
	assert.Same(t, b, leaves[1])
	assert.Same(t, c, leaves[2])

	// Single leaves select themselves.
	assert.Equal(t, []*AttributeFilter{a}, a.Leaves())
}
