package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const DefaultCursorParam = "cursor"

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor points into an ordered dataset.
//
// Position is the string form of the first ordering column of the boundary
// row, Offset counts the rows at or after Position that must be skipped and
// Reverse tells that the page is read backwards from Position.
type Cursor struct {
	Offset   int
	Reverse  bool
	Position *string
}

// Encode renders the cursor as base64 of "o=<offset>&r=1&p=<position>",
// omitting zero offset, false reverse and nil position.
func (c Cursor) Encode() string {
	tokens := make([]string, 0, 3)
	if c.Offset != 0 {
		tokens = append(tokens, "o="+strconv.Itoa(c.Offset))
	}
	if c.Reverse {
		tokens = append(tokens, "r=1")
	}
	if c.Position != nil {
		tokens = append(tokens, "p="+url.QueryEscape(*c.Position))
	}

	return base64.StdEncoding.EncodeToString([]byte(strings.Join(tokens, "&")))
}

func (c Cursor) String() string {
	return c.Encode()
}

// IsEmpty reports whether the cursor points at the first page.
func (c Cursor) IsEmpty() bool {
	return c.Offset == 0 && !c.Reverse && c.Position == nil
}

// DecodeCursor parses a token produced by Encode. An empty token is the
// first page. Offsets above OffsetCutoff are clamped.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	tokens, err := url.ParseQuery(string(raw))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	var c Cursor
	if o := tokens.Get("o"); o != "" {
		c.Offset, err = positiveInt(o, OffsetCutoff)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: offset: %w", ErrInvalidCursor, err)
		}
	}

	if r := tokens.Get("r"); r != "" {
		reverse, err := strconv.Atoi(r)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: reverse: %w", ErrInvalidCursor, err)
		}
		c.Reverse = reverse != 0
	}

	if p := tokens.Get("p"); p != "" {
		c.Position = &p
	}

	return c, nil
}

func positiveInt(s string, cutoff int) (int, error) {
	ret, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if ret < 0 {
		return 0, fmt.Errorf("negative value %d", ret)
	}

	return min(ret, cutoff), nil
}
