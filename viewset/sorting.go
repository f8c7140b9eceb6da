package viewset

import (
	"reflect"
	"strings"

	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/pagination"
)

// sortableColumns maps the json names of the schema fields that are
// columns of the model onto those columns, for "?ordering=".
func sortableColumns[S any](sch *schema.Schema) pagination.ColumnMapping {
	st := reflect.TypeFor[S]()
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}

	mapping := make(pagination.ColumnMapping)
	if st.Kind() != reflect.Struct {
		return mapping
	}

	for _, sf := range reflect.VisibleFields(st) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		field := sch.LookUpField(sf.Name)
		if field == nil || field.DBName == "" {
			continue
		}

		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = sf.Name
		}
		mapping[name] = field.DBName
	}
	return mapping
}
