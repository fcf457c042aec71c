package dictionary

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbres/internal/storage"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Mario", "mario"},
		{"Perché", "perche"},
		{"L'amico", "lamico"},
		{"ÀÉÎ", "aei"},
		{"señor", "senor"},
		{"42", ""},
		{"", ""},
		{"это", "это"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestBaseEntryFrequency(t *testing.T) {
	assert.Equal(t, int64(1), BaseEntry{Word: "a"}.Frequency())
	assert.Equal(t, int64(7), BaseEntry{Word: "a", Freq: "7"}.Frequency())
	assert.Equal(t, int64(2), BaseEntry{Word: "a", Freq: "2.9"}.Frequency())
	assert.Equal(t, int64(0), BaseEntry{Word: "a", Freq: "-3"}.Frequency())
}

func TestReadBase(t *testing.T) {
	entries, err := ReadBase(strings.NewReader(`[{"w": "casa", "f": 10}, {"w": "cane"}]`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(10), entries[0].Frequency())
	assert.Equal(t, int64(1), entries[1].Frequency())

	_, err = ReadBase(strings.NewReader(`{"w": "casa"}`))
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	in := []BaseEntry{
		{Word: "a", Freq: "1"},
		{Word: "b", Freq: "5"},
		{Word: "c", Freq: "5"},
		{Word: "d", Freq: "3"},
	}
	out := Truncate(in, 3)
	words := make([]string, 0, len(out))
	for _, e := range out {
		words = append(words, e.Word)
	}
	assert.Equal(t, []string{"b", "c", "d"}, words)
	assert.Equal(t, "a", in[0].Word, "input must not be reordered")

	assert.Len(t, Truncate(in, 0), 4)
}

func TestDeletes(t *testing.T) {
	assert.Equal(t, []string{"ab", "ac", "bc"}, Deletes("abc", 1))
	assert.Equal(t, []string{"", "a", "b"}, Deletes("ab", 2))
	assert.Empty(t, Deletes("abc", 0))
	assert.Equal(t, []string{"à"}, Deletes("àà", 1))
}

func TestBuild(t *testing.T) {
	entries := []BaseEntry{
		{Word: "mare", Freq: "50"},
		{Word: "Mario", Freq: "100"},
		{Word: "Màre", Freq: "10"},
		{Word: "42"},
	}
	idx := Build(entries, BuildOptions{MaxEditDistance: 1, PrefixLength: 2})

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 3, idx.WordCount())
	assert.Equal(t, []Entry{{Word: "Mario", Frequency: 100}}, idx.NormalizedIndex["mario"])
	assert.Equal(t, []Entry{{Word: "mare", Frequency: 50}, {Word: "Màre", Frequency: 10}}, idx.NormalizedIndex["mare"])

	require.Len(t, idx.PrefixCache["m"], 3)
	assert.Equal(t, "Mario", idx.PrefixCache["m"][0].Word)
	assert.Equal(t, "Màre", idx.PrefixCache["ma"][2].Word)
	assert.NotContains(t, idx.PrefixCache, "mar")

	assert.Equal(t, []string{"mare", "mario"}, idx.SymDeletes["a"])
	assert.Equal(t, []string{"mare", "mario"}, idx.SymDeletes["m"])
	assert.Equal(t, &SymMeta{MaxEditDistance: 1, PrefixLength: 2}, idx.SymMeta)
}

func TestBuildOutputValidates(t *testing.T) {
	idx := Build([]BaseEntry{{Word: "ciao", Freq: "3"}, {Word: "casa"}}, DefaultBuildOptions())
	data, err := Encode(idx)
	require.NoError(t, err)

	parsed, err := newTestValidator(t, 0).ValidateBytes(data)
	require.NoError(t, err)
	assert.Equal(t, idx.NormalizedIndex, parsed.NormalizedIndex)
	assert.Equal(t, idx.SymMeta, parsed.SymMeta)
}

func TestBuildMaxWords(t *testing.T) {
	idx := Build([]BaseEntry{
		{Word: "uno", Freq: "1"},
		{Word: "due", Freq: "2"},
		{Word: "tre", Freq: "3"},
	}, BuildOptions{PrefixLength: 3, MaxWords: 2})

	assert.Equal(t, 2, idx.Len())
	assert.NotContains(t, idx.NormalizedIndex, "uno")
}

func TestBuildFileUpgradesIndex(t *testing.T) {
	dir := t.TempDir()
	old := `{
		"normalizedIndex": {"perche": [{"word": "perché", "frequency": 7, "source": 1}]},
		"prefixCache": {"p": [{"word": "perché", "frequency": 7, "source": 1}]},
		"symDeletes": {"stale": ["x"]},
		"symMeta": {"maxEditDistance": 1, "prefixLength": 2}
	}`
	path := filepath.Join(dir, "it_base.dict")
	require.NoError(t, os.WriteFile(path, []byte(old), 0600))

	idx, err := BuildFile(path, BuildOptions{MaxEditDistance: 1, PrefixLength: 4})
	require.NoError(t, err)

	assert.Equal(t, []Entry{{Word: "perché", Frequency: 7, Source: 1}}, idx.NormalizedIndex["perche"])
	assert.Equal(t, map[string][]Entry{"p": {{Word: "perché", Frequency: 7, Source: 1}}}, idx.PrefixCache)
	assert.Equal(t, &SymMeta{MaxEditDistance: 1, PrefixLength: 4}, idx.SymMeta)
	assert.NotContains(t, idx.SymDeletes, "stale")
	assert.Equal(t, []string{"perche"}, idx.SymDeletes["erc"])
	assert.Equal(t, []string{"perche"}, idx.SymDeletes["pec"])

	// An upgraded index is itself a valid input.
	data, err := Encode(idx)
	require.NoError(t, err)
	again, err := BuildBytes(data, BuildOptions{MaxEditDistance: 1, PrefixLength: 4})
	require.NoError(t, err)
	assert.Equal(t, idx.SymDeletes, again.SymDeletes)
}

func TestBuildBytesInputShapes(t *testing.T) {
	opts := DefaultBuildOptions()

	idx, err := BuildBytes([]byte("\n  [{\"w\": \"Casa\", \"f\": 3}]"), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.WordCount())
	assert.NotEmpty(t, idx.PrefixCache)

	idx, err = BuildBytes([]byte(`{"normalizedIndex": {"casa": [{"word": "casa", "frequency": 1}]}}`), opts)
	require.NoError(t, err)
	assert.NotNil(t, idx.PrefixCache)
	assert.Equal(t, &SymMeta{MaxEditDistance: 2, PrefixLength: 4}, idx.SymMeta)

	for _, bad := range []string{"", "42", `{"prefixCache": {}}`, `[{"w": 1}]`} {
		_, err := BuildBytes([]byte(bad), opts)
		assert.Error(t, err, "%q", bad)
	}
}

func TestBuildAll(t *testing.T) {
	src := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(content), 0600))
	}
	write("it_base.json", `[{"w": "ciao", "f": 10}, {"w": "casa", "f": 4}]`)
	write("fr_base.json", `[{"w": "bonjour"}]`)
	write("xx_base.json", `not json`)
	write("notes.json", `[]`)

	dst, err := storage.NewOverrides(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	results, err := BuildAll(context.Background(), src, dst, DefaultBuildOptions(), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "fr", results[0].Language)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Words)

	assert.Equal(t, "it", results[1].Language)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "it_base.dict", results[1].Written.Name)

	assert.Equal(t, "xx", results[2].Language)
	assert.Error(t, results[2].Err)

	names, err := dst.List(context.Background(), Dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr_base.dict", "it_base.dict"}, names)

	data, err := dst.ReadFile(context.Background(), Dir, "it_base.dict")
	require.NoError(t, err)
	idx, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.WordCount())
}

func TestBuildAllEmptyDir(t *testing.T) {
	dst, err := storage.NewOverrides(t.TempDir())
	require.NoError(t, err)

	_, err = BuildAll(context.Background(), t.TempDir(), dst, DefaultBuildOptions(), 1)
	assert.Error(t, err)
}
