// Package adapter persists validated request schemas through gorm models
// and copies models back into response schemas.
//
// Schema fields correspond to model fields by Go field name. Plain fields
// are copied, relations are resolved by the shape of the schema field:
//
//   - a belongs-to relation takes a nested schema, which is saved first, or
//     the key of an existing row;
//   - a has-one relation takes a nested schema saved after the owner;
//   - has-many and many-to-many relations take a list of keys or nested
//     schemas that replaces the relation, a CRUD payload or a Link payload.
//
// Everything runs in a single transaction. Missing rows and rejected
// payloads end up as 400 errors.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/logging"
)

const logPrefix = "Adapter"

// Save creates or updates the M with primary key pk from payload. A nil pk,
// or a pk with no row behind it, creates a new row.
func Save[M, S any](ctx context.Context, db *gorm.DB, payload S, pk *PK) (*M, error) {
	var saved *M
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s := &saver{ctx: ctx, tx: tx}
		instance, err := s.save(reflect.TypeFor[M](), reflect.ValueOf(payload), pk, nil)
		if err != nil {
			return err
		}

		saved = instance.Interface().(*M)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

type saver struct {
	ctx context.Context
	tx  *gorm.DB
}

// save stores one instance of modelType. relation holds foreign key values
// imposed by a parent row.
func (s *saver) save(modelType reflect.Type, payload reflect.Value, pk *PK, relation map[string]any) (reflect.Value, error) {
	sch, err := s.parse(modelType)
	if err != nil {
		return reflect.Value{}, err
	}

	payload = indirect(payload)
	if !payload.IsValid() || payload.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("payload for %s must be a struct", sch.Name)
	}
	logging.Call(logPrefix, "save", "model", sch.Name, "pk", pk, "payload", payload.Interface())

	instance, created, err := s.getOrCreate(sch, pk, relation)
	if err != nil {
		return reflect.Value{}, err
	}

	var after []func() error
	for _, sf := range reflect.VisibleFields(payload.Type()) {
		if !sf.IsExported() || sf.Anonymous || sf.Tag.Get("adapter") == "-" {
			continue
		}
		value, err := payload.FieldByIndexErr(sf.Index)
		if err != nil {
			continue
		}

		if rel, ok := sch.Relationships.Relations[sf.Name]; ok {
			switch rel.Type {
			case schema.BelongsTo:
				err = s.forward(instance, rel, value)
			case schema.HasOne:
				after = append(after, func() error { return s.hasOne(instance, rel, value) })
			case schema.HasMany, schema.Many2Many:
				after = append(after, func() error { return s.multiple(instance, rel, sf.Name, value) })
			}
			if err != nil {
				return reflect.Value{}, err
			}
			continue
		}

		field := sch.LookUpField(sf.Name)
		if field == nil || field.DBName == "" || field.PrimaryKey {
			continue
		}
		if err = s.setField(instance, field, value); err != nil {
			return reflect.Value{}, err
		}
	}

	if cleaner, ok := instance.Interface().(Cleaner); ok {
		if err = cleaner.Clean(); err != nil {
			return reflect.Value{}, asBadRequest(err)
		}
	}

	q := s.tx.Omit(clause.Associations)
	if created {
		err = q.Create(instance.Interface()).Error
	} else {
		err = q.Save(instance.Interface()).Error
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("save %s: %w", sch.Name, err)
	}

	for _, fn := range after {
		if err = fn(); err != nil {
			return reflect.Value{}, err
		}
	}

	return instance, nil
}

func (s *saver) parse(modelType reflect.Type) (*schema.Schema, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	stmt := &gorm.Statement{DB: s.tx}
	if err := stmt.Parse(reflect.New(modelType).Interface()); err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}
	return stmt.Schema, nil
}

// getOrCreate loads the row with pk or allocates a new instance carrying
// pk. Relation values are applied in both cases.
func (s *saver) getOrCreate(sch *schema.Schema, pk *PK, relation map[string]any) (reflect.Value, bool, error) {
	instance := reflect.New(sch.ModelType)
	created := true

	if pk != nil && !pk.IsZero() {
		found, err := s.find(sch, *pk, instance)
		if err != nil {
			return reflect.Value{}, false, err
		}
		created = !found
		if created {
			if err = assign(sch.PrioritizedPrimaryField.ReflectValueOf(s.ctx, instance.Elem()), reflect.ValueOf(pk.Value())); err != nil {
				return reflect.Value{}, false, asBadRequest(err)
			}
		}
	}

	for name, v := range relation {
		field := sch.LookUpField(name)
		if field == nil {
			return reflect.Value{}, false, fmt.Errorf("%s has no field %s", sch.Name, name)
		}
		if err := assign(field.ReflectValueOf(s.ctx, instance.Elem()), reflect.ValueOf(v)); err != nil {
			return reflect.Value{}, false, err
		}
	}

	return instance, created, nil
}

// setField copies a plain payload value. Foreign key columns must point at
// an existing row.
func (s *saver) setField(instance reflect.Value, field *schema.Field, value reflect.Value) error {
	if logging.CallEnabled() {
		logging.Call(logPrefix, "setField", "field", field.Name, "value", value.Interface())
	}

	if err := assign(field.ReflectValueOf(s.ctx, instance.Elem()), value); err != nil {
		return httperr.BadRequest(fmt.Sprintf("Attribute %s: %s.", field.Name, err))
	}

	rel := belongsToByForeignKey(field)
	if rel == nil {
		return nil
	}
	pk, ok := pkFrom(value)
	if !ok || reflect.ValueOf(pk.Value()).IsZero() {
		return nil
	}

	_, err := s.mustGet(rel.FieldSchema, pk)
	return err
}

func (s *saver) find(sch *schema.Schema, pk PK, dst reflect.Value) (bool, error) {
	res := s.tx.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: sch.PrioritizedPrimaryField.DBName},
		Value:  pk.Value(),
	}).Limit(1).Find(dst.Interface())
	if res.Error != nil {
		return false, fmt.Errorf("load %s %v: %w", sch.Name, pk, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// mustGet loads the row with pk and fails with 400 when there is none.
func (s *saver) mustGet(sch *schema.Schema, pk PK) (reflect.Value, error) {
	instance := reflect.New(sch.ModelType)
	found, err := s.find(sch, pk, instance)
	if err != nil {
		return reflect.Value{}, err
	}
	if !found {
		return reflect.Value{}, doesNotExist(sch)
	}
	return instance, nil
}

func belongsToByForeignKey(field *schema.Field) *schema.Relationship {
	for _, rel := range field.Schema.Relationships.BelongsTo {
		for _, ref := range rel.References {
			if ref.ForeignKey == field {
				return rel
			}
		}
	}
	return nil
}

func primaryKey(ctx context.Context, sch *schema.Schema, instance reflect.Value) any {
	value, _ := sch.PrioritizedPrimaryField.ValueOf(ctx, instance.Elem())
	return value
}

func doesNotExist(sch *schema.Schema) error {
	return httperr.BadRequest(sch.Name + " matching query does not exist.")
}

func asBadRequest(err error) error {
	var herr *httperr.Error
	if errors.As(err, &herr) {
		return err
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return httperr.BadRequest(msg)
}
