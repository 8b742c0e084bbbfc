package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is the decoded form of a page token: the number of rows already served.
type Cursor struct {
	Offset int `json:"o"`
}

// EncodeToken serialises the provided cursor into a base64 URL-safe page token.
// The first page has no token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.Offset <= 0 {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses the page token produced by EncodeToken back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor, nil
}

// Window resolves a page request into the offset and limit of the query.
// Stores fetch limit+1 rows so NextToken can tell whether another page exists.
func Window(pageSize int, pageToken string) (offset, limit int, err error) {
	cursor, err := DecodeToken(pageToken)
	if err != nil {
		return 0, 0, err
	}
	return cursor.Offset, Limits{}.clamp(pageSize), nil
}

// NextToken returns the token of the page after the one served at offset, or ""
// when fetched (the number of rows read, up to limit+1) shows no more rows.
func NextToken(offset, limit, fetched int) string {
	if fetched <= limit {
		return ""
	}
	token, err := EncodeToken(Cursor{Offset: offset + limit})
	if err != nil {
		return ""
	}
	return token
}
