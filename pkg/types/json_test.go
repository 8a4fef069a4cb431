package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnyStringScalars(t *testing.T) {
	assert.Equal(t, "", AnyString(nil))
	assert.Equal(t, "Pune", AnyString("  Pune "))
	assert.Equal(t, "820982911946154508", AnyString(json.Number("820982911946154508")))
	assert.Equal(t, "499.5", AnyString(499.5))
	assert.Equal(t, "true", AnyString(true))
	assert.Equal(t, "", AnyString(map[string]any{"a": 1}))
}

func TestJSONMapString(t *testing.T) {
	var empty JSONMap
	assert.Equal(t, "", empty.String("city"))

	m := ToJSONMap(map[string]any{"city": "Nashik", "zip": json.Number("422001")})
	assert.Equal(t, "Nashik", m.String("city"))
	assert.Equal(t, "422001", m.String("zip"))
	assert.Nil(t, ToJSONMap([]any{1}))
}

func TestRawJSON(t *testing.T) {
	assert.JSONEq(t, `[]`, string(RawJSON(nil)))
	assert.JSONEq(t, `[{"name":"Fern"}]`, string(RawJSON([]map[string]string{{"name": "Fern"}})))
}
