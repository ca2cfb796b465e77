package fieldtype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefault()

	for _, k := range []Kind{Text, Textarea, RichText, Number, Image, Boolean, Date, Select, Array, Object} {
		assert.True(t, r.IsValid(k), string(k))
	}
	assert.False(t, r.IsValid("geo"))

	assert.True(t, r.Nested(Array))
	assert.True(t, r.Nested(Object))
	assert.False(t, r.Nested(Text))

	kinds := r.Kinds()
	require.Len(t, kinds, 10)
	// отсортировано по kind
	for i := 1; i < len(kinds); i++ {
		assert.Less(t, string(kinds[i-1].Kind), string(kinds[i].Kind))
	}
}

func TestLoadSeedEmptyPathGivesBuiltins(t *testing.T) {
	r, err := LoadSeed("")
	require.NoError(t, err)
	assert.Len(t, r.Kinds(), 10)
}

func TestLoadSeedRelabelsAndNarrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kinds:
  - kind: text
    label: "Короткий текст"
  - kind: image
`), 0o644))

	r, err := LoadSeed(path)
	require.NoError(t, err)

	kinds := r.Kinds()
	require.Len(t, kinds, 2)
	assert.True(t, r.IsValid(Text))
	assert.True(t, r.IsValid(Image))
	assert.False(t, r.IsValid(Array)) // сужен

	for _, k := range kinds {
		if k.Kind == Text {
			assert.Equal(t, "Короткий текст", k.Label)
		}
		if k.Kind == Image {
			assert.Equal(t, "Image", k.Label) // лейбл из builtin
			assert.True(t, k.HasValue)
		}
	}
}

func TestLoadSeedRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kinds:
  - kind: hologram
    label: "Hologram"
`), 0o644))

	_, err := LoadSeed(path)
	assert.ErrorContains(t, err, "unknown kind")
}
