// Package viewset groups the CRUD routes of one gorm model behind a chi
// router. Request and response bodies use the schema type S, rows are
// read and written as the model type M.
//
// Usage:
//
//	vs := &viewset.ViewSet[Book, BookSchema]{Basename: "books", Ordering: []string{"-id"}}
//	err := vs.Register(router, viewset.Options{DB: db})
package viewset

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/adapter"
	"github.com/Alp4ka/fango/filter"
	"github.com/Alp4ka/fango/pagination"
	"github.com/Alp4ka/fango/permissions"
)

// Builtin route names.
const (
	RouteList          = "list"
	RouteRetrieve      = "retrieve"
	RouteCreate        = "create"
	RouteUpdate        = "update"
	RoutePartialUpdate = "partial_update"
	RouteDelete        = "delete"
)

var builtinRoutes = []string{RouteList, RouteRetrieve, RouteCreate, RouteUpdate, RoutePartialUpdate, RouteDelete}

var ErrActionCollision = errors.New("action collides with a viewset route")

// Action is an extra route of a viewset. Path is relative to the viewset
// prefix, e.g. "/{pk}/publish/".
type Action struct {
	Name       string
	Method     string
	Path       string
	Permission permissions.Permission
	Handler    http.HandlerFunc
}

// Options carry the router level defaults.
type Options struct {
	DB    *gorm.DB
	Debug bool
	// PageSize applies to viewsets that do not set their own.
	PageSize   int
	Permission permissions.Permission
}

type ViewSet[M, S any] struct {
	Basename string
	// Ordering uses "-field" notation and defaults to "id".
	Ordering []string
	PageSize int
	ReadOnly bool
	// Lookup is the pk converter: adapter.LookupInt (default), LookupUUID
	// or LookupStr.
	Lookup     string
	Permission permissions.Permission
	// RoutePermissions override Permission for single builtin routes.
	RoutePermissions map[string]permissions.Permission
	// Target names the model for ModelPermissions. Derived from M when nil.
	Target *permissions.Target
	// Queryset scopes every read. Defaults to all rows of M.
	Queryset       func(r *http.Request, db *gorm.DB) *gorm.DB
	Actions        []Action
	DisableFilters bool

	db       *gorm.DB
	debug    bool
	pageSize int
	ordering pagination.Orderings
	sorting  pagination.ColumnMapping
	filters  *filter.FilterSet
	target   permissions.Target
	schema   *schema.Schema
	fallback permissions.Permission
}

// Register mounts the viewset routes under "/<Basename>".
func (vs *ViewSet[M, S]) Register(r chi.Router, opts Options) error {
	if vs.Basename == "" {
		return errors.New("viewset basename is required")
	}
	if opts.DB == nil {
		return fmt.Errorf("viewset %s: no database", vs.Basename)
	}

	for _, action := range vs.Actions {
		if slices.Contains(builtinRoutes, action.Name) {
			return fmt.Errorf("viewset %s: %w: %q", vs.Basename, ErrActionCollision, action.Name)
		}
	}

	if err := vs.setup(opts); err != nil {
		return fmt.Errorf("viewset %s: %w", vs.Basename, err)
	}

	r.Route("/"+vs.Basename, func(r chi.Router) {
		r.Use(middleware.GetHead)

		collection := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
		detail := []string{http.MethodGet, http.MethodHead, http.MethodOptions}

		r.Get("/", vs.guard(RouteList, vs.list))
		r.Get("/{pk}/", vs.guard(RouteRetrieve, vs.retrieve))
		if !vs.ReadOnly {
			r.Post("/", vs.guard(RouteCreate, vs.create))
			r.Put("/{pk}/", vs.guard(RouteUpdate, vs.update))
			r.Patch("/{pk}/", vs.guard(RoutePartialUpdate, vs.partialUpdate))
			r.Delete("/{pk}/", vs.guard(RouteDelete, vs.delete))

			collection = append(collection, http.MethodPost)
			detail = append(detail, http.MethodPut, http.MethodPatch, http.MethodDelete)
		}
		r.Options("/", vs.guard(RouteList, options(collection)))
		r.Options("/{pk}/", vs.guard(RouteRetrieve, options(detail)))

		for _, action := range vs.Actions {
			perm := permissions.Resolve(action.Permission, vs.Permission, vs.fallback)
			r.Method(action.Method, action.Path, vs.check(perm, action.Handler))
		}
	})

	return nil
}

func (vs *ViewSet[M, S]) setup(opts Options) error {
	vs.db = opts.DB
	vs.debug = opts.Debug
	vs.fallback = opts.Permission
	vs.pageSize = lo.CoalesceOrEmpty(vs.PageSize, opts.PageSize, pagination.DefaultPageSize)

	ordering, err := pagination.ParseOrdering(lo.Ternary(len(vs.Ordering) == 0, []string{"id"}, vs.Ordering)...)
	if err != nil {
		return err
	}
	vs.ordering = ordering

	stmt := &gorm.Statement{DB: vs.db}
	if err = stmt.Parse(new(M)); err != nil {
		return fmt.Errorf("parse model schema: %w", err)
	}
	vs.schema = stmt.Schema
	vs.sorting = sortableColumns[S](stmt.Schema)

	if !vs.DisableFilters {
		if vs.filters, err = filter.Generate[S](vs.db, new(M)); err != nil {
			return err
		}
	}

	if vs.Target != nil {
		vs.target = *vs.Target
	} else if vs.target, err = permissions.TargetOf(vs.db, new(M)); err != nil {
		return err
	}

	switch vs.Lookup {
	case "", adapter.LookupInt, adapter.LookupUUID, adapter.LookupStr:
	default:
		return fmt.Errorf("unknown lookup converter %q", vs.Lookup)
	}
	return nil
}

// guard applies the permission resolved for a builtin route.
func (vs *ViewSet[M, S]) guard(route string, h http.HandlerFunc) http.HandlerFunc {
	perm := permissions.Resolve(vs.RoutePermissions[route], vs.Permission, vs.fallback)
	return vs.check(perm, h)
}

func (vs *ViewSet[M, S]) check(perm permissions.Permission, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := perm.Check(r, vs.target); err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r)
	}
}

func options(methods []string) http.HandlerFunc {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusNoContent)
	}
}
