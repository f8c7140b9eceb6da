package adapter

import (
	"fmt"
	"reflect"
)

// ToSchema copies model into a new S by Go field name. Relations are
// rendered as key lists or nested schemas, depending on the type of the
// schema field. Schema fields without a model counterpart are left for
// Compute.
func ToSchema[S any](model any) (S, error) {
	var out S
	if err := copyStruct(reflect.ValueOf(&out).Elem(), reflect.ValueOf(model)); err != nil {
		return out, err
	}

	if c, ok := any(&out).(Computer); ok {
		c.Compute()
	}
	return out, nil
}

func copyStruct(dst, src reflect.Value) error {
	src = indirect(src)
	if !src.IsValid() {
		return nil
	}
	if dst.Kind() != reflect.Struct || src.Kind() != reflect.Struct {
		return fmt.Errorf("cannot copy %s into %s", src.Type(), dst.Type())
	}

	for _, df := range reflect.VisibleFields(dst.Type()) {
		if !df.IsExported() || df.Anonymous || df.Tag.Get("adapter") == "-" {
			continue
		}

		sf, ok := src.Type().FieldByName(df.Name)
		if !ok || !sf.IsExported() {
			continue
		}
		sv, err := src.FieldByIndexErr(sf.Index)
		if err != nil {
			continue
		}
		dv, err := dst.FieldByIndexErr(df.Index)
		if err != nil {
			continue
		}

		if err = copyValue(dv, sv); err != nil {
			return fmt.Errorf("field %s: %w", df.Name, err)
		}
	}
	return nil
}

func copyValue(dst, src reflect.Value) error {
	if setter, ok := dst.Addr().Interface().(ValueSetter); ok {
		if v := indirect(src); v.IsValid() {
			return setter.SetFrom(v.Interface())
		}
		return nil
	}

	if err := assign(dst, src); err == nil {
		return nil
	}

	src = indirect(src)
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}

	switch {
	case dst.Kind() == reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := copyValue(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case dst.Kind() == reflect.Slice && src.Kind() == reflect.Slice:
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := range src.Len() {
			if err := copyValue(out.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case isPKType(dst.Type()) && src.Kind() == reflect.Struct:
		// a related row rendered as its key
		id := src.FieldByName("ID")
		if !id.IsValid() {
			return fmt.Errorf("%s has no ID field", src.Type())
		}
		return assign(dst, id)
	case dst.Kind() == reflect.Struct && src.Kind() == reflect.Struct:
		return copyStruct(dst, src)
	}

	return fmt.Errorf("cannot copy %s into %s", src.Type(), dst.Type())
}
