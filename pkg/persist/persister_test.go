package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshotIndex is a struct for persister round-trip testing.
type snapshotIndex struct {
	Trees []string `json:"trees" yaml:"trees"`
	Total int      `json:"total" yaml:"total"`
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{NewJSONCodec(), NewYAMLCodec(), NewGobCodec()} {
		t.Run(codec.Extension(), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := NewPersister[snapshotIndex]("index", codec)
			assert.False(t, p.Exists(dir))

			original := snapshotIndex{Trees: []string{"a", "b"}, Total: 12}

			require.NoError(t, p.Save(dir, func() *snapshotIndex { return &original }))
			assert.True(t, p.Exists(dir))
			assert.Equal(t, filepath.Join(dir, "index"+codec.Extension()), p.Path(dir))

			var restored snapshotIndex

			require.NoError(t, p.Load(dir, func(s *snapshotIndex) { restored = *s }))
			assert.Equal(t, original, restored)
		})
	}
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	p := NewPersister[snapshotIndex]("missing", NewJSONCodec())
	called := false

	err := p.Load(t.TempDir(), func(_ *snapshotIndex) { called = true })
	require.Error(t, err)
	assert.False(t, called)
}

func TestPersister_SaveInvalidDir(t *testing.T) {
	t.Parallel()

	p := NewPersister[snapshotIndex]("index", NewYAMLCodec())

	err := p.Save("/nonexistent/path", func() *snapshotIndex {
		return &snapshotIndex{Total: 1}
	})
	assert.Error(t, err)
}
