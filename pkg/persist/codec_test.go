package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testManifest mimics a snapshot manifest for round-trip codec testing.
type testManifest struct {
	KeyType string           `json:"key_type" yaml:"key_type"`
	Shards  int              `json:"shards"   yaml:"shards"`
	Trees   map[string]int   `json:"trees"    yaml:"trees"`
	Roots   []uint32         `json:"roots"    yaml:"roots"`
	Extra   map[string]int64 `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func sampleManifest() testManifest {
	return testManifest{
		KeyType: "int",
		Shards:  4,
		Trees:   map[string]int{"orders": 12, "users": 3},
		Roots:   []uint32{1, 7, 42},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			codec, err := CodecByName(name)
			require.NoError(t, err)

			original := sampleManifest()

			var buf bytes.Buffer

			require.NoError(t, codec.Encode(&buf, original))

			var decoded testManifest

			require.NoError(t, codec.Decode(&buf, &decoded))
			assert.Equal(t, original, decoded)
		})
	}
}

func TestCodecByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		extension string
	}{
		{"json", ".json"},
		{"JSON", ".json"},
		{"yaml", ".yaml"},
		{"yml", ".yaml"},
		{"gob", ".gob"},
	}

	for _, tt := range tests {
		codec, err := CodecByName(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.extension, codec.Extension(), tt.name)
	}

	_, err := CodecByName("xml")
	require.ErrorIs(t, err, ErrUnknownCodec)
	assert.Contains(t, err.Error(), "xml")
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{Indent: ""}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, sampleManifest()))

	// Compact JSON has at most one trailing newline (from json.Encoder).
	assert.LessOrEqual(t, strings.Count(buf.String(), "\n"), 1)
}

func TestJSONCodec_PrettyPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, sampleManifest()))
	assert.Contains(t, buf.String(), "\n"+defaultIndent+`"key_type"`)
}

func TestYAMLCodec_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewYAMLCodec().Encode(&buf, sampleManifest()))

	output := buf.String()
	assert.Contains(t, output, "key_type: int\n")
	assert.Contains(t, output, "trees:\n  orders: 12\n")
	assert.NotContains(t, output, "extra")
}

func TestCodecs_DecodeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		codec Codec
		input string
		want  string
	}{
		{NewJSONCodec(), "not valid json{{{", "json decode"},
		{NewYAMLCodec(), "trees: [unterminated", "yaml decode"},
		{NewGobCodec(), "not gob data", "gob decode"},
	}

	for _, tt := range tests {
		var decoded testManifest

		err := tt.codec.Decode(strings.NewReader(tt.input), &decoded)
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestCodecs_EncodeError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	// Channels cannot be JSON-encoded.
	err := NewJSONCodec().Encode(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json encode")

	// Functions cannot be gob-encoded.
	err = NewGobCodec().Encode(&buf, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gob encode")
}

func TestSaveLoadState(t *testing.T) {
	t.Parallel()

	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			codec, err := CodecByName(name)
			require.NoError(t, err)

			original := sampleManifest()
			require.NoError(t, SaveState(dir, "manifest", codec, original))

			_, err = os.Stat(filepath.Join(dir, "manifest"+codec.Extension()))
			require.NoError(t, err)

			var loaded testManifest

			require.NoError(t, LoadState(dir, "manifest", codec, &loaded))
			assert.Equal(t, original, loaded)
		})
	}
}

func TestSaveState_LeavesNoTemporaryFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, SaveState(dir, "manifest", NewJSONCodec(), sampleManifest()))
	require.Error(t, SaveState(dir, "broken", NewJSONCodec(), make(chan int)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.json", entries[0].Name())
}

func TestSaveState_ReplacesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewYAMLCodec()

	first := sampleManifest()
	require.NoError(t, SaveState(dir, "manifest", codec, first))

	second := sampleManifest()
	second.Shards = 9
	require.NoError(t, SaveState(dir, "manifest", codec, second))

	var loaded testManifest

	require.NoError(t, LoadState(dir, "manifest", codec, &loaded))
	assert.Equal(t, 9, loaded.Shards)
}

func TestLoadState_FileNotFound(t *testing.T) {
	t.Parallel()

	var state testManifest

	err := LoadState(t.TempDir(), "nonexistent", NewJSONCodec(), &state)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "open")
}

func TestSaveState_InvalidDirectory(t *testing.T) {
	t.Parallel()

	err := SaveState("/nonexistent/path/that/does/not/exist", "test", NewJSONCodec(), sampleManifest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}

func TestLoadState_DecodeError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.yaml"), []byte("shards: [nope"), 0o600))

	var state testManifest

	err := LoadState(dir, "corrupt", NewYAMLCodec(), &state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
