package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	frames := NewFrames("Query", "response_7", "1+2")
	data := Marshal(frames)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, frames, out)
	assert.Equal(t, "Query", out.Tag())
	assert.Equal(t, []string{"response_7", "1+2"}, out.Strings())
}

func TestUnmarshalTruncated(t *testing.T) {
	_, err := Unmarshal([]byte{0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestUnmarshalEmpty(t *testing.T) {
	_, err := Unmarshal(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestArrayRoundTrip(t *testing.T) {
	items := []string{"mygroup", "other"}
	for _, front := range []bool{false, true} {
		s := CreateArray(items, front)
		assert.ElementsMatch(t, items, ParseArray(s))
	}
}

func TestParseArrayStripsEmptyElement(t *testing.T) {
	assert.Equal(t, []string{"mygroup", "other"}, ParseArray("mygroup|other|"))
	assert.Equal(t, []string{"mygroup", "other"}, ParseArray("|mygroup|other"))
}

func TestParseArrayEmptyString(t *testing.T) {
	assert.Nil(t, ParseArray(""))
}
