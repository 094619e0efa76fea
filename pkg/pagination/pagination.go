package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds offset pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit and ?offset, clamping limit to [1, MaxLimit].
func FromContext(c echo.Context) Params {
	return Params{Limit: limitFrom(c), Offset: max(0, atoi(c.QueryParam("offset")))}
}

func limitFrom(c echo.Context) int {
	limit := atoi(c.QueryParam("limit"))
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Cursor marks a position in a list ordered by (created_at, id) descending.
// The zero Cursor means "from the newest row".
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c Cursor) IsZero() bool { return c.ID == uuid.Nil }

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. An empty token yields the
// zero Cursor.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor")
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, fmt.Errorf("invalid cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor")
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor")
	}
	return Cursor{CreatedAt: createdAt, ID: uid}, nil
}

// KeysetParams holds keyset pagination parameters.
type KeysetParams struct {
	Limit int
	After Cursor
}

// KeysetFromContext reads ?limit and ?cursor.
func KeysetFromContext(c echo.Context) (KeysetParams, error) {
	after, err := DecodeCursor(c.QueryParam("cursor"))
	if err != nil {
		return KeysetParams{}, err
	}
	return KeysetParams{Limit: limitFrom(c), After: after}, nil
}

// KeysetResponse is a page of a keyset-paginated list. NextCursor is empty on
// the last page.
type KeysetResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
