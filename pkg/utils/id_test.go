package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("bid")
	assert.True(t, strings.HasPrefix(id, "bid_"))
	assert.NotEqual(t, id, GenerateID("bid"))

	assert.Len(t, GenerateID(""), 36)
}
