package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/google/uuid"
)

// Lookup converters accepted by ParsePK.
const (
	LookupInt  = "int"
	LookupUUID = "uuid"
	LookupStr  = "str"
)

// PK is a primary key value: an integer, a UUID or a string.
type PK struct {
	v any
}

func IntPK(v int64) PK { return PK{v: v} }
func UUIDPK(v uuid.UUID) PK { return PK{v: v} }
func StringPK(v string) PK { return PK{v: v} }
func (p PK) Value() any { return p.v }
func (p PK) IsZero() bool { return p.v == nil }
func (p PK) String() string { return fmt.Sprint(p.v) }
func (p PK) Ptr() *PK { return &p }

// ParsePK parses a path segment with the given lookup converter.
func ParsePK(raw, lookup string) (PK, error) {
	switch lookup {
	case LookupInt, "":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return PK{}, fmt.Errorf("parse int pk %q: %w", raw, err)
		}
		return IntPK(v), nil
	case LookupUUID:
		v, err := uuid.Parse(raw)
		if err != nil {
			return PK{}, fmt.Errorf("parse uuid pk %q: %w", raw, err)
		}
		return UUIDPK(v), nil
	case LookupStr:
		if raw == "" {
			return PK{}, errors.New("empty pk")
		}
		return StringPK(raw), nil
	default:
		return PK{}, fmt.Errorf("unknown lookup converter %q", lookup)
	}
}

func (p PK) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.v)
}

// UnmarshalJSON accepts a number or a string. Strings holding a UUID
// become UUID keys.
func (p *PK) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = PK{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if id, err := uuid.Parse(s); err == nil {
			*p = UUIDPK(id)
			return nil
		}
		*p = StringPK(s)
		return nil
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("pk must be an integer or a string: %s", data)
	}
	*p = IntPK(v)
	return nil
}

var (
	pkType   = reflect.TypeFor[PK]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

// pkFrom reads a key out of v, which may be a PK, an integer, a UUID or a
// string, possibly behind pointers.
func pkFrom(v reflect.Value) (PK, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return PK{}, false
	}

	switch {
	case v.Type() == pkType:
		pk := v.Interface().(PK)
		return pk, !pk.IsZero()
	case v.Type() == uuidType:
		return UUIDPK(v.Interface().(uuid.UUID)), true
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntPK(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntPK(int64(v.Uint())), true
	case reflect.String:
		return StringPK(v.String()), true
	}
	return PK{}, false
}

func isPKType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == pkType || t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String:
		return true
	}
	return false
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
