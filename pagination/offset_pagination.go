package pagination

import (
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/Alp4ka/fango/httperr"
)

// OffsetPagination is LIMIT/OFFSET pagination behind the cursor token format.
// Only the offset of the cursor is used.
type OffsetPagination[T any] struct {
	PageSize int
	// Ordering defaults to "id".
	Ordering      Orderings
	Debug         bool
	CursorParam   string
	PageSizeParam string
}

func (p OffsetPagination[T]) Paginate(r *http.Request, query *gorm.DB) (*Page[T], error) {
	cursor, err := DecodeCursor(r.URL.Query().Get(p.cursorParam()))
	if err != nil {
		return nil, httperr.BadRequest("Invalid cursor")
	}

	ordering := p.Ordering
	if len(ordering) == 0 {
		ordering = Orderings{{Column: "id", Direction: DirectionASC}}
	}
	if err = ordering.validate(); err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	sch, err := parseModel(query, new(T))
	if err != nil {
		return nil, err
	}

	size := pageSize(r, p.PageSize, p.PageSizeParam)

	var results []T
	err = ordering.Apply(query.WithContext(r.Context()), sch).
		Offset(cursor.Offset).
		Limit(size + 1).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	page, hasMore := trimLookahead(results, size)

	ret := &Page[T]{Results: lo.Ternary(page == nil, []T{}, page)}
	if hasMore {
		ret.Next = p.link(r, Cursor{Offset: cursor.Offset + size})
	}
	if cursor.Offset > 0 {
		ret.Previous = p.link(r, Cursor{Offset: max(cursor.Offset-size, 0)})
	}

	return ret, nil
}

func (p OffsetPagination[T]) cursorParam() string {
	return lo.CoalesceOrEmpty(p.CursorParam, DefaultCursorParam)
}

func (p OffsetPagination[T]) link(r *http.Request, c Cursor) *string {
	return lo.ToPtr(replaceQueryParam(r, p.Debug, p.cursorParam(), c.Encode()))
}
