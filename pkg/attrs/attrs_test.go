package attrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedGetters(t *testing.T) {
	s := Set{
		"name":    "energy",
		"count":   3,
		"ratio":   "0.25",
		"on":      "true",
		"timeout": "1m30s",
		"secs":    2.5,
	}

	v, err := s.String("name", "")
	require.NoError(t, err)
	assert.Equal(t, "energy", v)

	n, err := s.Int("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := s.Float("ratio", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.25, f)

	b, err := s.Bool("on", false)
	require.NoError(t, err)
	assert.True(t, b)

	d, err := s.Duration("timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
	d, err = s.Duration("secs", 0)
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)

	n, err = s.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestGetterErrors(t *testing.T) {
	s := Set{"x": "abc", "y": 1.5, "z": []int{1}}
	_, err := s.Float("x", 0)
	assert.Error(t, err)
	_, err = s.Int("y", 0)
	assert.Error(t, err)
	_, err = s.Bool("z", false)
	assert.Error(t, err)
	_, err = s.Duration("x", 0)
	assert.Error(t, err)
}

func TestSubAndPrefixed(t *testing.T) {
	s := Set{"clear.enabled": true, "clear.timeout": "1s", "name": "a"}
	sub := s.Sub("clear")
	assert.Equal(t, Set{"enabled": true, "timeout": "1s"}, sub)
	assert.Equal(t, Set{"clear.enabled": true, "clear.timeout": "1s"}, sub.Prefixed("clear"))
	assert.Equal(t, []string{"clear.enabled", "clear.timeout", "name"}, s.Names())

	c := s.Clone()
	c["name"] = "b"
	assert.Equal(t, "a", s["name"])
	c.Merge(Set{"extra": 1})
	assert.True(t, c.Has("extra"))
	assert.False(t, s.Has("extra"))
}
