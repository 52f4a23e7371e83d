package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeRateLimits(t *testing.T) {
	builtin := map[string]RateLimitYAML{
		"maps":     {Capacity: 10, RefillPerSecond: 1, MaxWait: "5s"},
		"text-llm": {Capacity: 5, RefillPerSecond: 0.5, MaxWait: "10s"},
	}
	user := map[string]RateLimitYAML{
		"maps":    {Capacity: 20, RefillPerSecond: 2, MaxWait: "3s"},
		"browser": {Capacity: 3, RefillPerSecond: 0.5, MaxWait: "10s"},
	}

	result := mergeRateLimits(builtin, user)

	assert.Len(t, result, 3)
	assert.Equal(t, 20, result["maps"].Capacity)
	assert.Equal(t, 5, result["text-llm"].Capacity)
	assert.Equal(t, 3, result["browser"].Capacity)
}

func TestMergeRateLimits_EmptyMaps(t *testing.T) {
	t.Run("empty user", func(t *testing.T) {
		builtin := map[string]RateLimitYAML{"maps": {Capacity: 10}}
		result := mergeRateLimits(builtin, map[string]RateLimitYAML{})
		assert.Len(t, result, 1)
	})

	t.Run("nil builtin", func(t *testing.T) {
		user := map[string]RateLimitYAML{"maps": {Capacity: 10}}
		result := mergeRateLimits(nil, user)
		assert.Len(t, result, 1)
	})

	t.Run("both empty", func(t *testing.T) {
		result := mergeRateLimits(nil, nil)
		assert.Empty(t, result)
	})
}

func TestMergeRelatedIndustries_UserReplacesBuiltinList(t *testing.T) {
	builtin := map[string][]string{
		"plumbing": {"hvac", "electrical"},
	}
	user := map[string][]string{
		"plumbing": {"hvac"},
		"roofing":  {"gutters"},
	}

	result := mergeRelatedIndustries(builtin, user)

	assert.Len(t, result, 2)
	assert.Equal(t, []string{"hvac"}, result["plumbing"])
	assert.Equal(t, []string{"gutters"}, result["roofing"])
}

func TestMergeRelatedIndustries_BuiltinListIsCopiedNotAliased(t *testing.T) {
	builtin := map[string][]string{"plumbing": {"hvac"}}
	result := mergeRelatedIndustries(builtin, nil)

	result["plumbing"][0] = "mutated"
	assert.Equal(t, "hvac", builtin["plumbing"][0])
}
