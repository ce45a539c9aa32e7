package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	f, err := New([]string{"*.jpg", "*.png"}, []string{"private/**", "*.tmp.png"})
	require.NoError(t, err)

	assert.True(t, f.Match("a.jpg"))
	assert.True(t, f.Match("nested/B.PNG"))
	assert.False(t, f.Match("notes.txt"))
	assert.False(t, f.Match("private/secret.jpg"))
	assert.False(t, f.Match("x.tmp.png"))
}

func TestFilter_NoIncludeMatchesAll(t *testing.T) {
	f, err := New(nil, nil)
	require.NoError(t, err)
	assert.True(t, f.Match("anything.bin"))
}

func TestFilter_BadPattern(t *testing.T) {
	_, err := New([]string{"[a-"}, nil)
	assert.Error(t, err)
	_, err = New(nil, []string{"{a,"})
	assert.Error(t, err)
}
