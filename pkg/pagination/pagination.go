// Package pagination carries opaque keyset cursors for the unified order list.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const cursorSep = "|"

// Params is the limit/cursor pair a list endpoint accepts.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of a page in the date-descending merged stream.
// Source breaks timestamp ties across tables; ID breaks them within one.
type Cursor struct {
	CreatedAt time.Time
	Source    string
	ID        uuid.UUID
}

// NormalizeLimit maps zero or negative to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Trim cuts rows fetched with one extra element down to limit and reports
// whether a further page exists.
func Trim[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

func EncodeCursor(c Cursor) string {
	raw := strings.Join([]string{
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.Source,
		c.ID.String(),
	}, cursorSep)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	at, source, id, ok := splitCursor(string(raw))
	if !ok {
		return nil, errors.New("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt.UTC(), Source: source, ID: rowID}, nil
}

func splitCursor(raw string) (at, source, id string, ok bool) {
	parts := strings.SplitN(raw, cursorSep, 3)
	if len(parts) != 3 || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
