package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func badParam(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt reads key as an integer in [min, max]. A missing value yields
// defaultVal without a range check.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(key, key+" must be a whole number", nil)
	}
	if n < min || n > max {
		return 0, badParam(key, key+" is out of range", map[string]any{"min": min, "max": max})
	}
	return n, nil
}

var boolWords = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true,
	"0": false, "false": false, "no": false, "off": false,
}

// ParseQueryBool accepts 1/0, true/false, yes/no and on/off. Missing is false.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.ToLower(queryValue(r, key))
	if raw == "" {
		return false, nil
	}
	v, ok := boolWords[raw]
	if !ok {
		return false, badParam(key, key+" must be true or false", nil)
	}
	return v, nil
}

// ParseQueryDate reads a YYYY-MM-DD day as midnight UTC. Empty yields nil.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return nil, badParam(key, key+" must be a calendar date", map[string]any{"layout": "YYYY-MM-DD"})
	}
	return &day, nil
}
