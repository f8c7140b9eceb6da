// Package filter generates query-string filters from schema types and
// renders them as gorm conditions.
package filter

import (
	"fmt"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/Alp4ka/fango/httperr"
)

// MaxConjunctions bounds the size of the DNF a single request may produce.
const MaxConjunctions = 100

var (
	timeType = reflect.TypeFor[time.Time]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

// Field is one query parameter of a FilterSet.
type Field struct {
	Param  string
	Column string
	Lookup Lookup
	// Type is the Go type query values are parsed into.
	Type reflect.Type
}

// FilterSet maps query parameters onto column conditions.
type FilterSet struct {
	fields map[string]Field
}

// Generate builds a FilterSet from the fields of schema S that map onto a
// column of model. Parameters are named after the json name of the schema
// field:
//   - bool, uuid: "<name>"
//   - numbers, time: "<name>", "<name>_gt", "<name>_gte", "<name>_lt", "<name>_lte"
//   - slices: "<name>" (comma separated IN list), "<name>_contains"
//   - everything else: "<name>", "<name>_contains", "<name>_starts", "<name>_ends"
func Generate[S any](db *gorm.DB, model any) (*FilterSet, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}

	st := reflect.TypeFor[S]()
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("filter schema %s is not a struct", st)
	}

	fs := &FilterSet{fields: make(map[string]Field)}
	for _, sf := range reflect.VisibleFields(st) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}

		name := jsonName(sf)
		if name == "" {
			continue
		}

		mf := stmt.Schema.LookUpField(sf.Name)
		if mf == nil || mf.DBName == "" {
			continue
		}

		fs.addFieldFilters(name, mf, deref(sf.Type))
	}

	return fs, nil
}

func (fs *FilterSet) addFieldFilters(name string, mf *schema.Field, t reflect.Type) {
	add := func(param string, lookup Lookup, typ reflect.Type) {
		fs.fields[param] = Field{Param: param, Column: mf.DBName, Lookup: lookup, Type: typ}
	}
	stringType := reflect.TypeFor[string]()

	switch {
	case t == uuidType || t.Kind() == reflect.Bool:
		add(name, LookupExact, t)
	case t == timeType || isNumeric(t):
		add(name, LookupExact, t)
		add(name+"_gt", LookupGT, t)
		add(name+"_gte", LookupGTE, t)
		add(name+"_lt", LookupLT, t)
		add(name+"_lte", LookupLTE, t)
	case t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		add(name, LookupIn, deref(t.Elem()))
		add(name+"_contains", LookupIContains, stringType)
	default:
		add(name, LookupExact, t)
		add(name+"_contains", LookupIContains, stringType)
		add(name+"_starts", LookupIStartsWith, stringType)
		add(name+"_ends", LookupIEndsWith, stringType)
	}
}

// Params lists the accepted query parameters in lexical order.
func (fs *FilterSet) Params() []string {
	params := lo.Keys(fs.fields)
	slices.Sort(params)
	return params
}

func (fs *FilterSet) Field(param string) (Field, bool) {
	f, ok := fs.fields[param]
	return f, ok
}

// Build turns query values into a DNF. Parameters are ANDed together and
// repeated values of one parameter are ORed. Unknown parameters are
// ignored.
func (fs *FilterSet) Build(values url.Values) (DNF, error) {
	var ret DNF

	for _, param := range fs.Params() {
		raws := lo.Compact(values[param])
		if len(raws) == 0 {
			continue
		}

		field := fs.fields[param]
		paramDNF, err := field.dnf(raws)
		if err != nil {
			return nil, httperr.BadRequest("Invalid filter value.").
				WithDetails(map[string]any{param: err.Error()})
		}

		ret = ret.And(paramDNF)
		if len(ret) > MaxConjunctions {
			return nil, httperr.BadRequest(fmt.Sprintf("Filter expands to more than %d alternatives.", MaxConjunctions))
		}
	}

	return ret, nil
}

// Apply filters db by the query values.
func (fs *FilterSet) Apply(db *gorm.DB, values url.Values) (*gorm.DB, error) {
	dnf, err := fs.Build(values)
	if err != nil {
		return nil, err
	}

	return dnf.Apply(db), nil
}

func (f Field) dnf(raws []string) (DNF, error) {
	if f.Lookup == LookupIn {
		items := make([]any, 0, len(raws))
		for _, raw := range raws {
			for _, part := range lo.Compact(strings.Split(raw, ",")) {
				v, err := parseValue(f.Type, strings.TrimSpace(part))
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
		}

		return DNF{{{Column: f.Column, Lookup: LookupIn, Value: items}}}, nil
	}

	ret := make(DNF, 0, len(raws))
	for _, raw := range raws {
		v, err := parseValue(f.Type, raw)
		if err != nil {
			return nil, err
		}
		ret = append(ret, Conjunction{{Column: f.Column, Lookup: f.Lookup, Value: v}})
	}

	return ret, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseValue(t reflect.Type, raw string) (any, error) {
	switch t {
	case timeType:
		for _, layout := range timeLayouts {
			if v, err := time.Parse(layout, raw); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("invalid time %q", raw)
	case uuidType:
		return uuid.Parse(raw)
	}

	switch t.Kind() {
	case reflect.Bool:
		return strconv.ParseBool(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.ParseInt(raw, 10, t.Bits())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.ParseUint(raw, 10, t.Bits())
	case reflect.Float32, reflect.Float64:
		return strconv.ParseFloat(raw, t.Bits())
	default:
		return raw, nil
	}
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// jsonName returns the json name of sf, or "" when it is not serialized.
func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return sf.Name
	default:
		return name
	}
}
