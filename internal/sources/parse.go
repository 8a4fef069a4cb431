package sources

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/types"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeObject decodes raw as a JSON object, keeping numbers as json.Number
// so 64-bit ids survive.
func DecodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeData, err, "order payload is not a JSON object")
	}
	if out == nil {
		return nil, pkgerrors.New(pkgerrors.CodeData, "order payload is empty")
	}
	return out, nil
}

func str(m map[string]any, key string) string {
	return types.AnyString(m[key])
}

func strPtr(m map[string]any, key string) *string {
	v := str(m, key)
	if v == "" {
		return nil
	}
	return &v
}

// lowerPtr is strPtr for status vocabularies, which are compared lowercase.
func lowerPtr(m map[string]any, key string) *string {
	v := strings.ToLower(strings.TrimSpace(str(m, key)))
	if v == "" {
		return nil
	}
	return &v
}

func obj(m map[string]any, key string) map[string]any {
	if nested, ok := m[key].(map[string]any); ok {
		return nested
	}
	return map[string]any{}
}

func list(m map[string]any, key string) []any {
	if items, ok := m[key].([]any); ok {
		return items
	}
	return nil
}

// rawList re-encodes the array at key, or [] when absent.
func rawList(m map[string]any, key string) json.RawMessage {
	items := list(m, key)
	if items == nil {
		return json.RawMessage("[]")
	}
	return types.RawJSON(items)
}

// money parses a decimal from a string or number, yielding zero when absent
// or malformed.
func money(value any) decimal.Decimal {
	s := types.AnyString(value)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseTimestamp parses the timestamp layouts the upstream APIs emit and
// returns it in UTC. Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// timestamp parses the first non-empty key that holds a valid time.
func timestamp(m map[string]any, keys ...string) *time.Time {
	for _, key := range keys {
		if t, ok := ParseTimestamp(str(m, key)); ok {
			return &t
		}
	}
	return nil
}

// positiveID reads an integer identifier that may arrive as a number or string.
func positiveID(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		s := str(m, key)
		if s == "" {
			continue
		}
		n, err := json.Number(s).Int64()
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func joinName(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
