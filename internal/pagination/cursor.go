// Package pagination provides opaque cursors for order-based paging through
// chunk listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// Cursor represents a decoded pagination cursor: the last chunk seen and its
// position within the knowledge source.
type Cursor struct {
	LastID    string
	LastOrder int
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor creates a base64-encoded cursor from the last item ID and order
func EncodeCursor(lastID string, lastOrder int) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + strconv.Itoa(lastOrder)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a base64-encoded cursor. An empty cursor decodes to
// nil, meaning start from the beginning.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	order, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    parts[0],
		LastOrder: order,
	}, nil
}

// CreateNextCursor creates a cursor for the next page based on the last item.
// Returns empty string when the page was not full.
func CreateNextCursor[T any](items []T, limit int, getID func(T) string, getOrder func(T) int) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	lastItem := items[len(items)-1]
	return EncodeCursor(getID(lastItem), getOrder(lastItem))
}
