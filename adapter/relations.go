package adapter

import (
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/logging"
)

var timeType = reflect.TypeFor[time.Time]()

func isNested(v reflect.Value) bool {
	v = indirect(v)
	return v.IsValid() && v.Kind() == reflect.Struct && v.Type() != pkType && v.Type() != timeType
}

// forward resolves a belongs-to relation before the owner is saved.
func (s *saver) forward(instance reflect.Value, rel *schema.Relationship, value reflect.Value) error {
	logging.Call(logPrefix, "forward", "relation", rel.Name, "value", value.Interface())

	related, err := s.forwardTarget(instance, rel, value)
	if err != nil {
		return err
	}

	relField := rel.Field.ReflectValueOf(s.ctx, instance.Elem())
	for _, ref := range rel.References {
		if ref.OwnPrimaryKey {
			continue
		}
		fk := ref.ForeignKey.ReflectValueOf(s.ctx, instance.Elem())
		if !related.IsValid() {
			fk.SetZero()
			continue
		}
		pkValue, _ := ref.PrimaryKey.ValueOf(s.ctx, related.Elem())
		if err = assign(fk, reflect.ValueOf(pkValue)); err != nil {
			return err
		}
	}

	if !related.IsValid() {
		relField.SetZero()
		return nil
	}
	return assign(relField, related)
}

func (s *saver) forwardTarget(instance reflect.Value, rel *schema.Relationship, value reflect.Value) (reflect.Value, error) {
	if !indirect(value).IsValid() {
		return reflect.Value{}, nil
	}

	if isNested(value) {
		var current *PK
		for _, ref := range rel.References {
			if v, zero := ref.ForeignKey.ValueOf(s.ctx, instance.Elem()); !ref.OwnPrimaryKey && !zero {
				if pk, ok := pkFrom(reflect.ValueOf(v)); ok {
					current = &pk
				}
			}
		}
		return s.save(rel.FieldSchema.ModelType, value, current, nil)
	}

	pk, ok := pkFrom(value)
	if !ok {
		return reflect.Value{}, httperr.BadRequest(fmt.Sprintf("Attribute %s: unsupported value.", rel.Name))
	}
	return s.mustGet(rel.FieldSchema, pk)
}

// ownerValues are the foreign key values a child row of instance carries
// for rel.
func (s *saver) ownerValues(instance reflect.Value, rel *schema.Relationship) map[string]any {
	values := make(map[string]any, len(rel.References))
	for _, ref := range rel.References {
		switch {
		case ref.OwnPrimaryKey:
			v, _ := ref.PrimaryKey.ValueOf(s.ctx, instance.Elem())
			values[ref.ForeignKey.Name] = v
		case ref.PrimaryValue != "":
			values[ref.ForeignKey.Name] = ref.PrimaryValue
		}
	}
	return values
}

// saveChild saves a nested schema of a to-many or has-one relation. pk
// comes from the primary key field of the payload.
func (s *saver) saveChild(instance reflect.Value, rel *schema.Relationship, item reflect.Value) (reflect.Value, error) {
	var relation map[string]any
	if rel.Type == schema.HasMany || rel.Type == schema.HasOne {
		relation = s.ownerValues(instance, rel)
	}
	return s.save(rel.FieldSchema.ModelType, item, payloadPK(rel.FieldSchema, item), relation)
}

func payloadPK(sch *schema.Schema, payload reflect.Value) *PK {
	payload = indirect(payload)
	if sch.PrioritizedPrimaryField == nil || !payload.IsValid() {
		return nil
	}
	field := payload.FieldByName(sch.PrioritizedPrimaryField.Name)
	if !field.IsValid() || indirect(field).IsValid() && indirect(field).IsZero() {
		return nil
	}
	if pk, ok := pkFrom(field); ok {
		return &pk
	}
	return nil
}

// hasOne saves the row that points back at instance.
func (s *saver) hasOne(instance reflect.Value, rel *schema.Relationship, value reflect.Value) error {
	logging.Call(logPrefix, "hasOne", "relation", rel.Name, "value", value.Interface())

	if !indirect(value).IsValid() {
		return nil
	}

	var related reflect.Value
	var err error
	if isNested(value) {
		pk := payloadPK(rel.FieldSchema, value)
		if pk == nil {
			current := reflect.New(rel.FieldSchema.ModelType)
			if err = s.association(instance, rel).Find(current.Interface()); err != nil {
				return fmt.Errorf("load %s: %w", rel.Name, err)
			}
			if v, zero := rel.FieldSchema.PrioritizedPrimaryField.ValueOf(s.ctx, current.Elem()); !zero {
				existing, _ := pkFrom(reflect.ValueOf(v))
				pk = &existing
			}
		}
		related, err = s.save(rel.FieldSchema.ModelType, value, pk, s.ownerValues(instance, rel))
	} else {
		related, err = s.linkExisting(instance, rel, value)
	}
	if err != nil {
		return err
	}

	return assign(rel.Field.ReflectValueOf(s.ctx, instance.Elem()), related)
}

func (s *saver) linkExisting(instance reflect.Value, rel *schema.Relationship, value reflect.Value) (reflect.Value, error) {
	pk, ok := pkFrom(value)
	if !ok {
		return reflect.Value{}, httperr.BadRequest(fmt.Sprintf("Attribute %s: unsupported value.", rel.Name))
	}
	related, err := s.mustGet(rel.FieldSchema, pk)
	if err != nil {
		return reflect.Value{}, err
	}
	if err = s.association(instance, rel).Replace(related.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("link %s: %w", rel.Name, err)
	}
	return related, nil
}

// multiple handles has-many and many-to-many relations after the owner is
// saved.
func (s *saver) multiple(instance reflect.Value, rel *schema.Relationship, key string, value reflect.Value) error {
	logging.Call(logPrefix, "multiple", "relation", rel.Name, "value", value.Interface())

	if value.Kind() == reflect.Slice && value.IsNil() {
		if err := s.association(instance, rel).Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", rel.Name, err)
		}
		return nil
	}

	value = indirect(value)
	if !value.IsValid() {
		return nil
	}

	switch payload := value.Interface().(type) {
	case crudPayload:
		return s.crud(instance, rel, key, payload)
	case Link:
		return s.link(instance, rel, payload)
	}

	if value.Kind() != reflect.Slice {
		return httperr.BadRequest(fmt.Sprintf("Attribute %s: unsupported value.", key))
	}

	rows := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(rel.FieldSchema.ModelType)), 0, value.Len())
	for i := range value.Len() {
		row, err := s.relatedRow(instance, rel, value.Index(i))
		if err != nil {
			return err
		}
		rows = reflect.Append(rows, row)
	}

	var err error
	if rows.Len() == 0 {
		err = s.association(instance, rel).Clear()
	} else {
		err = s.association(instance, rel).Replace(rows.Interface())
	}
	if err != nil {
		return fmt.Errorf("replace %s: %w", rel.Name, err)
	}
	return nil
}

func (s *saver) relatedRow(instance reflect.Value, rel *schema.Relationship, item reflect.Value) (reflect.Value, error) {
	if isNested(item) {
		return s.saveChild(instance, rel, item)
	}
	pk, ok := pkFrom(item)
	if !ok {
		return reflect.Value{}, httperr.BadRequest(fmt.Sprintf("Attribute %s: unsupported value.", rel.Name))
	}
	return s.mustGet(rel.FieldSchema, pk)
}

func (s *saver) crud(instance reflect.Value, rel *schema.Relationship, key string, payload crudPayload) error {
	logging.Call(logPrefix, "crud", "relation", rel.Name)
	create, update, remove := payload.items()

	for i := range create.Len() {
		item := create.Index(i)
		if payloadPK(rel.FieldSchema, item) != nil {
			return httperr.BadRequest(fmt.Sprintf("Attribute %s.create data has id.", key))
		}
		row, err := s.saveChild(instance, rel, item)
		if err != nil {
			return err
		}
		if rel.Type == schema.Many2Many {
			if err = s.association(instance, rel).Append(row.Interface()); err != nil {
				return fmt.Errorf("append %s: %w", rel.Name, err)
			}
		}
	}

	for i := range update.Len() {
		item := update.Index(i)
		if payloadPK(rel.FieldSchema, item) == nil {
			return httperr.BadRequest(fmt.Sprintf("Attribute %s.update data has no id.", key))
		}
		if _, err := s.saveChild(instance, rel, item); err != nil {
			return err
		}
	}

	for _, pk := range remove {
		row, err := s.member(instance, rel, pk)
		if err != nil {
			return err
		}
		if rel.Type == schema.Many2Many {
			if err = s.association(instance, rel).Delete(row.Interface()); err != nil {
				return fmt.Errorf("unlink %s: %w", rel.Name, err)
			}
		}
		if err = s.tx.Delete(row.Interface()).Error; err != nil {
			return fmt.Errorf("delete %s %v: %w", rel.FieldSchema.Name, pk, err)
		}
	}
	return nil
}

func (s *saver) link(instance reflect.Value, rel *schema.Relationship, payload Link) error {
	logging.Call(logPrefix, "link", "relation", rel.Name, "add", payload.Add, "remove", payload.Remove)

	for _, pk := range payload.Add {
		row, err := s.mustGet(rel.FieldSchema, pk)
		if err != nil {
			return err
		}
		if err = s.association(instance, rel).Append(row.Interface()); err != nil {
			return fmt.Errorf("append %s: %w", rel.Name, err)
		}
	}

	for _, pk := range payload.Remove {
		row, err := s.member(instance, rel, pk)
		if err != nil {
			return err
		}
		if err = s.association(instance, rel).Delete(row.Interface()); err != nil {
			return fmt.Errorf("remove %s: %w", rel.Name, err)
		}
	}
	return nil
}

// member loads the row with pk among the rows related to instance.
func (s *saver) member(instance reflect.Value, rel *schema.Relationship, pk PK) (reflect.Value, error) {
	row := reflect.New(rel.FieldSchema.ModelType)
	rows := reflect.New(reflect.SliceOf(rel.FieldSchema.ModelType))
	cond := clause.Eq{
		Column: clause.Column{Table: rel.FieldSchema.Table, Name: rel.FieldSchema.PrioritizedPrimaryField.DBName},
		Value:  pk.Value(),
	}
	if err := s.association(instance, rel).Find(rows.Interface(), cond); err != nil {
		return reflect.Value{}, fmt.Errorf("load %s %v: %w", rel.FieldSchema.Name, pk, err)
	}
	if rows.Elem().Len() == 0 {
		return reflect.Value{}, doesNotExist(rel.FieldSchema)
	}
	row.Elem().Set(rows.Elem().Index(0))
	return row, nil
}

type association interface {
	Find(out any, conds ...any) error
	Append(values ...any) error
	Replace(values ...any) error
	Delete(values ...any) error
	Clear() error
}

func (s *saver) association(instance reflect.Value, rel *schema.Relationship) association {
	return s.tx.Model(instance.Interface()).Association(rel.Name)
}
