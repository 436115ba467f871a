package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardIndexIsStableAndInRange(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		token := fmt.Sprintf("TOKEN%d", i)
		idx := ShardIndex(token, 8)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 8)
		assert.Equal(t, idx, ShardIndex(token, 8))
		seen[idx] = true
	}
	assert.Len(t, seen, 8)
	assert.Equal(t, 0, ShardIndex("BTC", 1))
}

func TestShardIndexMovesFewKeysOnGrowth(t *testing.T) {
	moved := 0
	const n = 1000
	for i := 0; i < n; i++ {
		token := fmt.Sprintf("T%d", i)
		if ShardIndex(token, 8) != ShardIndex(token, 9) {
			moved++
		}
	}
	// about 1/9 of keys should move
	assert.Less(t, moved, n/4)
}
