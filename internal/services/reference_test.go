package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReference(t *testing.T) {
	ref := NewReference("escrow_hold")
	assert.True(t, strings.HasPrefix(ref, "ESCROW-HOLD-"))
	assert.Len(t, ref, len("ESCROW-HOLD-")+12)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		r := NewReference("DEP")
		assert.False(t, seen[r], "references must be unique")
		seen[r] = true
	}
}
