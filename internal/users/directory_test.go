package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ExactMatchOnly(t *testing.T) {
	d := New(map[string]string{"user@example.org": "+61493123456"})

	phone, ok := d.Lookup("user@example.org")
	require.True(t, ok)
	require.Equal(t, "+61493123456", phone)

	for _, id := range []string{"User@example.org", " user@example.org", "user@example.com", ""} {
		_, ok := d.Lookup(id)
		assert.False(t, ok, id)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	in := map[string]string{"a": "+1"}
	d := New(in)
	in["b"] = "+2"

	require.Equal(t, 1, d.Len())
	_, ok := d.Lookup("b")
	require.False(t, ok)
}

func TestEmptyAndNil(t *testing.T) {
	require.True(t, New(nil).Empty())
	require.False(t, New(map[string]string{"a": "+1"}).Empty())

	var d *Directory
	require.True(t, d.Empty())
	_, ok := d.Lookup("a")
	require.False(t, ok)
	require.Nil(t, d.Identifiers())
}

func TestIdentifiersSorted(t *testing.T) {
	d := New(map[string]string{"b": "+2", "a": "+1"})
	require.Equal(t, []string{"a", "b"}, d.Identifiers())
}
