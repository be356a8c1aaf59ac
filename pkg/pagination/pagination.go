// Package pagination implements keyset paging over (created_at, id) pairs.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is a page request as it arrives from a handler.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the last row served.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode renders the cursor as an opaque, URL-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode reverses Encode. An empty token means the first page and yields nil.
func Decode(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}

// Window clamps a requested limit to [1, MaxLimit], defaulting to
// DefaultLimit, and returns it with the row count to fetch. The extra row
// tells whether another page exists.
func Window(limit int) (size, fetch int) {
	switch {
	case limit <= 0:
		size = DefaultLimit
	case limit > MaxLimit:
		size = MaxLimit
	default:
		size = limit
	}
	return size, size + 1
}

// Page cuts rows fetched with Window down to size and returns the token for
// the following page, or "" on the last one.
func Page[T any](rows []T, size int, position func(T) Cursor) ([]T, string) {
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, position(rows[size-1]).Encode()
}
