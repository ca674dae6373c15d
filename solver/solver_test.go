package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range []string{Adam, Vanilla, RMSProp} {
		s, err := New(name, 0.001)
		require.NoError(t, err, name)
		assert.NotNil(t, s, name)
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("adagrad", 0.001)
	assert.Error(t, err)
}

func TestNewInvalidLearningRate(t *testing.T) {
	_, err := New(Adam, 0.0)
	assert.Error(t, err)

	_, err = New(Adam, -0.1)
	assert.Error(t, err)
}
