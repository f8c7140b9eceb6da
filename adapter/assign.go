package adapter

import (
	"fmt"
	"reflect"
)

// assign stores src into dst, dereferencing or allocating pointers and
// converting between numeric types and named types of the same kind.
func assign(dst, src reflect.Value) error {
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}

	if src.Type() == pkType {
		return assign(dst, reflect.ValueOf(src.Interface().(PK).Value()))
	}

	if src.Kind() == reflect.Interface {
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		src = src.Elem()
	}

	switch {
	case dst.Type() == pkType:
		pk, ok := pkFrom(src)
		if !ok && !indirect(src).IsValid() {
			dst.SetZero()
			return nil
		}
		if !ok {
			return fmt.Errorf("cannot use %s as a key", src.Type())
		}
		dst.Set(reflect.ValueOf(pk))
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case src.Kind() == reflect.Pointer:
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		return assign(dst, src.Elem())
	case dst.Kind() == reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
	case convertible(src.Type(), dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	return nil
}

func convertible(src, dst reflect.Type) bool {
	if !src.ConvertibleTo(dst) {
		return false
	}
	if isNumber(src.Kind()) && isNumber(dst.Kind()) {
		return true
	}
	return src.Kind() == dst.Kind()
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}
