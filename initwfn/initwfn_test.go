package initwfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range []string{GlorotU, GlorotN, HeU, HeN, Zeroes,
		Ones} {
		fn, err := New(name, 1.0)
		require.NoError(t, err, name)
		assert.NotNil(t, fn, name)
	}
}

func TestNewCaseInsensitive(t *testing.T) {
	fn, err := New("GlorotU", 1.0)
	require.NoError(t, err)
	assert.NotNil(t, fn)
}

func TestNewUnknown(t *testing.T) {
	_, err := New("xavier", 1.0)
	assert.Error(t, err)
}
