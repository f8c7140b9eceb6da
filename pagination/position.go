package pagination

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// parseModel resolves the gorm schema of model using the cache of db.
func parseModel(db *gorm.DB, model any) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}

	return stmt.Schema, nil
}

func lookUpField(sch *schema.Schema, name string) (*schema.Field, error) {
	field := sch.LookUpField(name)
	if field == nil || field.DBName == "" {
		return nil, fmt.Errorf("model %s has no column '%s'", sch.Name, name)
	}

	return field, nil
}

// positionOf renders the value of field in row as a cursor position.
func positionOf(ctx context.Context, field *schema.Field, row reflect.Value) string {
	v, _ := field.ValueOf(ctx, reflect.Indirect(row))
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}

	switch vt := rv.Interface().(type) {
	case time.Time:
		return vt.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(vt)
	}
}

// parsePosition converts a cursor position back into a value comparable
// with field.
func parsePosition(field *schema.Field, position string) (any, error) {
	switch field.DataType {
	case schema.Int:
		return strconv.ParseInt(position, 10, 64)
	case schema.Uint:
		return strconv.ParseUint(position, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(position, 64)
	case schema.Bool:
		return strconv.ParseBool(position)
	case schema.Time:
		return time.Parse(time.RFC3339Nano, position)
	default:
		return position, nil
	}
}
