package xruntime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRatio_FillsZeroAndNegative(t *testing.T) {
	assert.Equal(t, defaultMemoryLimitRatio, defaultRatio(0))
	assert.Equal(t, defaultMemoryLimitRatio, defaultRatio(-1))
}

func TestDefaultRatio_PassesThroughExplicitValue(t *testing.T) {
	assert.Equal(t, 0.75, defaultRatio(0.75))
}
