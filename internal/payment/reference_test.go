package payment

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferenceFormat(t *testing.T) {
	now := time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
	ref, err := NewReference(now)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^2503-[0-9A-F]{8}$`), ref)
}

func TestNewReferenceUnique(t *testing.T) {
	now := time.Now().UTC()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref, err := NewReference(now)
		require.NoError(t, err)
		assert.False(t, seen[ref], "reference %s minted twice", ref)
		seen[ref] = true
	}
}
