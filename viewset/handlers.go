package viewset

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/adapter"
	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/logging"
	"github.com/Alp4ka/fango/pagination"
	"github.com/Alp4ka/fango/render"
)

const orderingParam = "ordering"

var errNotFound = httperr.NotFound("Not found.")

// queryset is the scoped base query of a request.
func (vs *ViewSet[M, S]) queryset(r *http.Request) *gorm.DB {
	db := vs.db.WithContext(r.Context()).Model(new(M))
	if vs.Queryset != nil {
		db = vs.Queryset(r, db)
	}
	return db
}

func (vs *ViewSet[M, S]) list(w http.ResponseWriter, r *http.Request) {
	query := vs.queryset(r).Preload(clause.Associations)

	if vs.filters != nil {
		var err error
		if query, err = vs.filters.Apply(query, r.URL.Query()); err != nil {
			writeError(w, r, err)
			return
		}
	}

	ordering := vs.ordering
	if raw := r.URL.Query().Get(orderingParam); raw != "" {
		requested, err := pagination.ParseSort(raw, vs.sorting)
		if err != nil {
			writeError(w, r, httperr.BadRequest(err.Error()))
			return
		}
		ordering = requested
	}

	paginator := pagination.CursorPagination[M]{
		PageSize: vs.pageSize,
		Ordering: ordering,
		Debug:    vs.debug,
	}
	page, err := paginator.Paginate(r, query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := pagination.MapPage(page, func(m M) (S, error) { return adapter.ToSchema[S](&m) })
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, out)
}

func (vs *ViewSet[M, S]) retrieve(w http.ResponseWriter, r *http.Request) {
	instance, _, err := vs.object(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vs.respond(w, r, http.StatusOK, instance)
}

func (vs *ViewSet[M, S]) create(w http.ResponseWriter, r *http.Request) {
	payload, err := render.Decode[S](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	vs.save(w, r, http.StatusCreated, payload, nil)
}

func (vs *ViewSet[M, S]) update(w http.ResponseWriter, r *http.Request) {
	_, pk, err := vs.object(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := render.Decode[S](r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	vs.save(w, r, http.StatusOK, payload, &pk)
}

// partialUpdate decodes the body over the current representation of the
// row, so fields missing from the body keep their values.
func (vs *ViewSet[M, S]) partialUpdate(w http.ResponseWriter, r *http.Request) {
	instance, pk, err := vs.object(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := adapter.ToSchema[S](instance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err = render.DecodeInto(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	vs.save(w, r, http.StatusOK, payload, &pk)
}

func (vs *ViewSet[M, S]) save(w http.ResponseWriter, r *http.Request, status int, payload S, pk *adapter.PK) {
	saved, err := adapter.Save[M](r.Context(), vs.db, payload, pk)
	if err != nil {
		writeError(w, r, err)
		return
	}

	value, _ := vs.schema.PrioritizedPrimaryField.ValueOf(r.Context(), reflect.ValueOf(saved).Elem())
	instance, err := vs.load(r, vs.db.WithContext(r.Context()).Model(new(M)), value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vs.respond(w, r, status, instance)
}

func (vs *ViewSet[M, S]) delete(w http.ResponseWriter, r *http.Request) {
	instance, pk, err := vs.object(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = vs.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		for _, rel := range vs.schema.Relationships.Many2Many {
			if err := tx.Model(instance).Association(rel.Name).Clear(); err != nil {
				return fmt.Errorf("clear %s: %w", rel.Name, err)
			}
		}
		return tx.Delete(instance).Error
	})
	if httperr.IsForeignKeyViolation(err) {
		err = vs.protected(r, instance, pk)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).WithField("pk", pk).Infof("deleted %s", vs.target.ModelName)
	render.NoContent(w)
}

// protected lists the rows of declared has-one and has-many relations that
// still reference instance.
func (vs *ViewSet[M, S]) protected(r *http.Request, instance *M, pk adapter.PK) error {
	var refs []string
	names := lo.Keys(vs.schema.Relationships.Relations)
	slices.Sort(names)
	for _, name := range names {
		rel := vs.schema.Relationships.Relations[name]
		if rel.Type != schema.HasMany && rel.Type != schema.HasOne {
			continue
		}

		rows := reflect.New(reflect.SliceOf(rel.FieldSchema.ModelType))
		err := vs.db.WithContext(r.Context()).Model(instance).Association(rel.Name).Find(rows.Interface())
		if err != nil {
			return fmt.Errorf("load %s: %w", rel.Name, err)
		}
		for i := range rows.Elem().Len() {
			id, _ := rel.FieldSchema.PrioritizedPrimaryField.ValueOf(r.Context(), rows.Elem().Index(i))
			refs = append(refs, fmt.Sprintf("%s id=%v", strings.ToLower(rel.FieldSchema.Name), id))
		}
	}

	return httperr.BadRequest(fmt.Sprintf(
		"Can't delete object %s id=%v by protected relations: %s", vs.target.ModelName, pk, strings.Join(refs, "; "),
	))
}

// object loads the row addressed by the pk path parameter with its
// associations. Keys that do not parse with the lookup converter are not
// found.
func (vs *ViewSet[M, S]) object(r *http.Request) (*M, adapter.PK, error) {
	pk, err := adapter.ParsePK(chi.URLParam(r, "pk"), vs.Lookup)
	if err != nil {
		return nil, adapter.PK{}, errNotFound
	}

	instance, err := vs.load(r, vs.queryset(r), pk.Value())
	if err != nil {
		return nil, adapter.PK{}, err
	}
	return instance, pk, nil
}

func (vs *ViewSet[M, S]) load(r *http.Request, query *gorm.DB, pk any) (*M, error) {
	instance := new(M)
	res := query.Preload(clause.Associations).
		Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: vs.schema.PrioritizedPrimaryField.DBName},
			Value:  pk,
		}).
		Limit(1).
		Find(instance)
	if res.Error != nil {
		return nil, fmt.Errorf("load %s: %w", vs.target.ModelName, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errNotFound
	}
	return instance, nil
}

func (vs *ViewSet[M, S]) respond(w http.ResponseWriter, r *http.Request, status int, instance *M) {
	out, err := adapter.ToSchema[S](instance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, status, out)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = errNotFound
	}
	httperr.Write(w, r, err)
}
