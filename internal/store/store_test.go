package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleTasks_DistinctNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range sampleTasks {
		assert.False(t, seen[s.name], "duplicate sample task name %q", s.name)
		seen[s.name] = true
		assert.NotEmpty(t, s.data)
	}
}
