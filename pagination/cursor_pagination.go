package pagination

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/httperr"
)

// CursorPagination pages a gorm query of T by the first ordering column.
//
// Usage:
//
//	p := CursorPagination[Book]{PageSize: 20, Ordering: Orderings{{"created_at", DirectionDESC}}}
//	page, err := p.Paginate(r, db.Model(&Book{}))
type CursorPagination[T any] struct {
	PageSize int
	Ordering Orderings
	// Debug keeps the request scheme in links. Otherwise links are https.
	Debug bool
	// CursorParam defaults to DefaultCursorParam.
	CursorParam string
	// PageSizeParam, when set, lets clients pick a page size up to MaxPageSize.
	PageSizeParam string
}

// cursorPage is the state of one Paginate call.
type cursorPage[T any] struct {
	cfg      *CursorPagination[T]
	ctx      context.Context
	cursor   Cursor
	pageSize int
	field    *schema.Field
	page     []T

	hasNext, hasPrevious           bool
	nextPosition, previousPosition *string
}

// Paginate reads the cursor from r, fetches one page of query and builds
// the links to the neighbouring pages.
func (p CursorPagination[T]) Paginate(r *http.Request, query *gorm.DB) (*Page[T], error) {
	cursor, err := DecodeCursor(r.URL.Query().Get(p.cursorParam()))
	if err != nil {
		return nil, httperr.BadRequest("Invalid cursor")
	}

	err = p.Ordering.validate()
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	sch, err := parseModel(query, new(T))
	if err != nil {
		return nil, err
	}

	field, err := lookUpField(sch, p.Ordering[0].Column)
	if err != nil {
		return nil, fmt.Errorf("cannot paginate: %w", err)
	}

	state := &cursorPage[T]{
		cfg:      &p,
		ctx:      r.Context(),
		cursor:   cursor,
		pageSize: pageSize(r, p.PageSize, p.PageSizeParam),
		field:    field,
	}

	err = state.fetch(query, sch)
	if err != nil {
		return nil, err
	}

	return &Page[T]{
		Next:     p.link(r, state.nextCursor()),
		Previous: p.link(r, state.previousCursor()),
		Results:  lo.Ternary(state.page == nil, []T{}, state.page),
	}, nil
}

func (c *cursorPage[T]) fetch(query *gorm.DB, sch *schema.Schema) error {
	ordering := c.cfg.Ordering
	if c.cursor.Reverse {
		ordering = ordering.Reverse()
	}

	query = ordering.Apply(query.WithContext(c.ctx), sch)

	if c.cursor.Position != nil {
		value, err := parsePosition(c.field, *c.cursor.Position)
		if err != nil {
			return httperr.BadRequest("Invalid cursor")
		}

		// The query is already ordered in reading direction, so the first
		// ordering picks the operator.
		operator := ordering[0].Direction.ForOperator()
		query = query.Where(operator.Expression(clause.Column{Table: clause.CurrentTable, Name: c.field.DBName}, value))
	}

	var results []T
	err := query.Offset(c.cursor.Offset).Limit(c.pageSize + 1).Find(&results).Error
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}

	page, hasFollowing := trimLookahead(results, c.pageSize)
	c.page = page

	var followingPosition *string
	if hasFollowing {
		followingPosition = lo.ToPtr(c.position(results[len(results)-1]))
	}

	if c.cursor.Reverse {
		c.page = lo.Reverse(c.page)

		c.hasNext = c.cursor.Position != nil || c.cursor.Offset > 0
		c.hasPrevious = hasFollowing
		c.nextPosition = c.cursor.Position
		c.previousPosition = followingPosition
	} else {
		c.hasNext = hasFollowing
		c.hasPrevious = c.cursor.Position != nil || c.cursor.Offset > 0
		c.nextPosition = followingPosition
		c.previousPosition = c.cursor.Position
	}

	return nil
}

func (c *cursorPage[T]) position(item T) string {
	return positionOf(c.ctx, c.field, reflect.ValueOf(&item))
}

// nextCursor walks the page backwards to find the last position that differs
// from the boundary, counting the rows that share it as the offset.
func (c *cursorPage[T]) nextCursor() *Cursor {
	if !c.hasNext {
		return nil
	}

	var compare *string
	if len(c.page) > 0 && c.cursor.Reverse && c.cursor.Offset != 0 {
		compare = lo.ToPtr(c.position(c.page[len(c.page)-1]))
	} else {
		compare = c.nextPosition
	}

	offset := 0
	var position *string

	hasItemWithUniquePosition := false
	for i := len(c.page) - 1; i >= 0; i-- {
		position = lo.ToPtr(c.position(c.page[i]))
		if compare == nil || *position != *compare {
			hasItemWithUniquePosition = true
			break
		}

		compare = position
		offset++
	}

	if len(c.page) > 0 && !hasItemWithUniquePosition {
		switch {
		case !c.hasPrevious:
			offset = c.pageSize
			position = nil
		case c.cursor.Reverse:
			offset = 0
			position = c.previousPosition
		default:
			offset = c.cursor.Offset + c.pageSize
			position = c.previousPosition
		}
	}

	if len(c.page) == 0 {
		position = c.nextPosition
	}

	return &Cursor{Offset: offset, Reverse: false, Position: position}
}

// previousCursor is nextCursor mirrored: the walk runs from the page start
// and the resulting cursor reads backwards.
func (c *cursorPage[T]) previousCursor() *Cursor {
	if !c.hasPrevious {
		return nil
	}

	var compare *string
	if len(c.page) > 0 && !c.cursor.Reverse && c.cursor.Offset != 0 {
		compare = lo.ToPtr(c.position(c.page[0]))
	} else {
		compare = c.previousPosition
	}

	offset := 0
	var position *string

	hasItemWithUniquePosition := false
	for _, item := range c.page {
		position = lo.ToPtr(c.position(item))
		if compare == nil || *position != *compare {
			hasItemWithUniquePosition = true
			break
		}

		compare = position
		offset++
	}

	if len(c.page) > 0 && !hasItemWithUniquePosition {
		switch {
		case !c.hasNext:
			offset = c.pageSize
			position = nil
		case c.cursor.Reverse:
			offset = c.cursor.Offset + c.pageSize
			position = c.nextPosition
		default:
			offset = 0
			position = c.nextPosition
		}
	}

	if len(c.page) == 0 {
		position = c.previousPosition
	}

	return &Cursor{Offset: offset, Reverse: true, Position: position}
}

func (p CursorPagination[T]) cursorParam() string {
	return lo.CoalesceOrEmpty(p.CursorParam, DefaultCursorParam)
}

func (p CursorPagination[T]) link(r *http.Request, c *Cursor) *string {
	if c == nil {
		return nil
	}

	return lo.ToPtr(replaceQueryParam(r, p.Debug, p.cursorParam(), c.Encode()))
}

func pageSize(r *http.Request, configured int, param string) int {
	size := NormalizePageSize(configured)
	if param == "" {
		return size
	}

	requested, err := strconv.Atoi(r.URL.Query().Get(param))
	if err != nil {
		return size
	}

	return NormalizePageSize(requested)
}

// replaceQueryParam rebuilds the absolute request URL with key set to val.
// Links use https unless debug is set.
func replaceQueryParam(r *http.Request, debug bool, key, val string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" || !debug {
		scheme = "https"
	}

	query := r.URL.Query()
	query.Set(key, val)

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}

	return u.String()
}
