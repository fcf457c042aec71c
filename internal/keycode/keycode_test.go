package keycode

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Code
		ok    bool
	}{
		{"KEYCODE_Q", Q, true},
		{"q", Q, true},
		{"space", Space, true},
		{"KEYCODE_DEL", Del, true},
		{"29", A, true},
		{"  KEYCODE_Z ", Z, true},
		{"KEYCODE_NOPE", 0, false},
		{"", 0, false},
		{"-1", 0, false},
		{"70000", 0, false},
		{"2", Num2, true},
		{"7", Num7, true},
		{"KEYCODE_7", Num7, true},
		{"14", Num7, true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := Parse(tc.input)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknown))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromJSON(t *testing.T) {
	c, err := FromJSON(json.RawMessage(`"KEYCODE_A"`))
	require.NoError(t, err)
	assert.Equal(t, A, c)

	c, err = FromJSON(json.RawMessage(`62`))
	require.NoError(t, err)
	assert.Equal(t, Space, c)

	// A digit string names the digit key; a JSON number is a raw code.
	c, err = FromJSON(json.RawMessage(`"7"`))
	require.NoError(t, err)
	assert.Equal(t, Num7, c)
	c, err = FromJSON(json.RawMessage(`7`))
	require.NoError(t, err)
	assert.Equal(t, Num0, c)

	_, err = FromJSON(json.RawMessage(`1.5`))
	assert.Error(t, err)

	_, err = FromJSON(json.RawMessage(`{"x":1}`))
	assert.Error(t, err)
}

func TestLetters(t *testing.T) {
	letters := Letters()
	require.Len(t, letters, 26)
	for i, c := range letters {
		assert.True(t, c.IsLetter())
		r, ok := c.Letter()
		require.True(t, ok)
		assert.Equal(t, rune('a'+i), r)

		back, ok := ForLetter(r)
		require.True(t, ok)
		assert.Equal(t, c, back)
	}
	assert.False(t, Space.IsLetter())
	_, ok := ForLetter('1')
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	assert.Equal(t, "KEYCODE_Q", Q.String())
	assert.Equal(t, "KEYCODE_SPACE", Space.String())
	assert.Equal(t, "999", Code(999).String())
	assert.False(t, Code(999).Known())
}

func TestAllSorted(t *testing.T) {
	all := All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
	assert.Contains(t, all, Emoji)
}
