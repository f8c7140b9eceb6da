package adapter

import "reflect"

// CRUD edits a to-many relation item by item. Create items must not carry
// an id, Update items must.
type CRUD[T any] struct {
	Create []T  `json:"create"`
	Update []T  `json:"update"`
	Delete []PK `json:"delete" validate:"required"`
}

// Link adds existing rows to a to-many relation or removes them from it.
type Link struct {
	Add    []PK `json:"add" validate:"required"`
	Remove []PK `json:"remove" validate:"required"`
}

type crudPayload interface {
	items() (create, update reflect.Value, remove []PK)
}

func (c CRUD[T]) items() (reflect.Value, reflect.Value, []PK) {
	return reflect.ValueOf(c.Create), reflect.ValueOf(c.Update), c.Delete
}

// Cleaner is implemented by models that validate themselves before being
// saved.
type Cleaner interface {
	Clean() error
}

// Computer is implemented by schemas with fields derived from the others.
// ToSchema calls Compute after copying the model fields.
type Computer interface {
	Compute()
}

// ValueSetter is implemented by schema field types that are built from a
// raw model value, such as choice items.
type ValueSetter interface {
	SetFrom(v any) error
}
