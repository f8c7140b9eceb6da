// Package schemas holds generic payload and response shapes shared by
// viewsets.
package schemas

import (
	"fmt"
	"reflect"
)

// Entry wraps a single result with an optional title and status.
type Entry[T any] struct {
	Title   *string `json:"title"`
	Status  *string `json:"status"`
	Results T       `json:"results"`
}

// ChoicesItem is a choice value rendered together with its label.
type ChoicesItem[T comparable] struct {
	ID   T       `json:"id"`
	Name *string `json:"name"`
}

// Labeler is implemented by enumerations that know their display label.
type Labeler interface {
	Label() string
}

// SetFrom fills the item from a raw model value. Values implementing
// Labeler get their label as Name.
func (c *ChoicesItem[T]) SetFrom(v any) error {
	id, ok := v.(T)
	if !ok {
		rv := reflect.ValueOf(v)
		target := reflect.TypeFor[T]()
		if !rv.IsValid() || !rv.Type().ConvertibleTo(target) {
			return fmt.Errorf("cannot use %T as choice of %s", v, target)
		}
		id = rv.Convert(target).Interface().(T)
	}

	c.ID = id
	c.Name = nil
	if l, ok := any(id).(Labeler); ok {
		label := l.Label()
		c.Name = &label
	}
	return nil
}

// Choice is one value of a Choices list.
type Choice[T comparable] struct {
	Value T
	Label string
}

// Choices is an ordered list of values with display labels.
type Choices[T comparable] []Choice[T]

// Label returns the label of v, or nil for unknown values.
func (c Choices[T]) Label(v T) *string {
	for _, choice := range c {
		if choice.Value == v {
			label := choice.Label
			return &label
		}
	}
	return nil
}

func (c Choices[T]) Item(v T) ChoicesItem[T] {
	return ChoicesItem[T]{ID: v, Name: c.Label(v)}
}

// Items renders every choice, in order.
func (c Choices[T]) Items() []ChoicesItem[T] {
	items := make([]ChoicesItem[T], len(c))
	for i, choice := range c {
		items[i] = c.Item(choice.Value)
	}
	return items
}

// Multiselect is an option of a multi-select widget.
type Multiselect struct {
	ID   int64   `json:"id"`
	Name *string `json:"name,omitempty"`
}
