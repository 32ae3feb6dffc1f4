package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		success  bool
	}{
		{"int", 10, 10.0, true},
		{"int8", int8(20), 20.0, true},
		{"int64", int64(50), 50.0, true},
		{"uint32", uint32(7), 7.0, true},
		{"float32", float32(60.5), 60.5, true},
		{"float64", 70.5, 70.5, true},
		{"json_number", json.Number("1.5"), 1.5, true},
		{"numeric_string", "100", 0.0, false},
		{"nil", nil, 0.0, false},
		{"unsupported_type", struct{}{}, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ToFloat64(tt.input)
			assert.Equal(t, tt.success, ok)
			if tt.success {
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name       string
		a, b       any
		expected   int
		comparable bool
	}{
		{"int vs float", 3, 3.5, -1, true},
		{"equal numbers", int64(2), 2.0, 0, true},
		{"strings", "b", "a", 1, true},
		{"bools", false, true, -1, true},
		{"times", late, early, 1, true},
		{"arrays", []any{1, 2}, []any{1, 3}, -1, true},
		{"shorter array first", []any{1}, []any{1, 2}, -1, true},
		{"string vs number", "10", 5, 0, false},
		{"maps are unordered", map[string]any{}, map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.comparable, ok)
			assert.Equal(t, tt.expected, c)
		})
	}
}

func TestSortCompare_OrdersByClass(t *testing.T) {
	assert.Equal(t, -1, SortCompare(nil, false))
	assert.Equal(t, -1, SortCompare(true, 0))
	assert.Equal(t, -1, SortCompare(99, "a"))
	assert.Equal(t, 1, SortCompare(map[string]any{}, []any{}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, 1.0))
	assert.True(t, Equal(json.Number("4"), 4))
	assert.False(t, Equal("1", 1))
	assert.True(t, Equal([]any{"a", 1}, []any{"a", 1.0}))
	assert.False(t, Equal([]any{"a"}, []any{"a", "b"}))
	assert.True(t, Equal(map[string]any{"x": []any{1}}, map[string]any{"x": []any{1.0}}))
	assert.False(t, Equal(map[string]any{"x": 1}, map[string]any{"y": 1}))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
}
