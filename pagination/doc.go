// Package pagination provides DRF style cursor pagination and a plain
// offset paginator over gorm queries.
//
// Overview
//
// Two paginators are available:
//   - CursorPagination: position based pagination. The cursor carries the
//     value of the first ordering column of the boundary row plus an offset
//     used to step over rows sharing that value. It is stable under inserts
//     and requires the first ordering column to be mostly unique.
//   - OffsetPagination: LIMIT/OFFSET pagination wrapped in the same cursor
//     token format, for datasets without a usable ordering column.
//
// Key concepts
//   - Cursor: offset, reverse flag and position, encoded as a base64
//     querystring ("o", "r", "p").
//   - Orderings: "-created" style multi-column ordering.
//   - Page: next and previous links plus the results of the current page.
//
// Both paginators fetch page size + 1 rows to decide whether another page
// follows without a COUNT query.
package pagination
