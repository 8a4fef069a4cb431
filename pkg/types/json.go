package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// JSONMap holds a free-form JSON object persisted through gorm's json serializer.
type JSONMap map[string]any

// String returns the value at key rendered as a string, or "" when absent.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	return AnyString(m[key])
}

// AnyString renders scalar JSON values as strings. Objects and arrays yield "".
func AnyString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// ToJSONMap converts an arbitrary decoded JSON value into a JSONMap when it is an object.
func ToJSONMap(value any) JSONMap {
	if m, ok := value.(map[string]any); ok {
		return JSONMap(m)
	}
	return nil
}

// RawJSON marshals value, falling back to an empty JSON array for nil.
func RawJSON(value any) json.RawMessage {
	if value == nil {
		return json.RawMessage("[]")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
