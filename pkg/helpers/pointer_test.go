package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolPointer(t *testing.T) {
	p := BoolPointer(true)
	require.NotNil(t, p)
	assert.True(t, *p)

	q := BoolPointer(false)
	require.NotNil(t, q)
	assert.False(t, *q)
	assert.NotSame(t, p, q)
}
