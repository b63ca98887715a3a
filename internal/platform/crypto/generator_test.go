package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")

	_, err = RandomToken(0)
	assert.Error(t, err)
}
