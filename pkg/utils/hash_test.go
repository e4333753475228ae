package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	assert.Equal(t, HashString("2.11.0", "user.dict()"), HashString("2.11.0", "user.dict()"))
	assert.NotEqual(t, HashString("ab", "c"), HashString("a", "bc"))
	assert.Len(t, HashString("x"), 64)
}
