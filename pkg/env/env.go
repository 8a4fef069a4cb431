// Package env reads the handful of settings that are needed before config
// loads, such as log format and instance identity.
package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, trimmed, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
