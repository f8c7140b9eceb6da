package pagination

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

// ForOperator returns the operator that selects rows following a position
// in this direction.
func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGT
	case DirectionDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

func (o Direction) Reverse() Direction {
	return lo.Ternary(o == DirectionDESC, DirectionASC, DirectionDESC)
}

type (
	Orderings []OrderBy
	OrderBy   struct {
		// Column is a model field name or a column name.
		Column    string
		Direction Direction
	}

	ColumnAlias = string

	// ColumnMapping maps external column aliases to model fields or columns.
	// Key is an external alias, value is an internal name.
	ColumnMapping = map[ColumnAlias]string
)

var _availableColumnNameSymbols = append([]rune("_"), lo.AlphanumericCharset...)

func (o OrderBy) validate() error {
	if !o.Direction.Valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	// Guard against SQL injection by restricting allowed characters in column names.
	if o.Column == "" || !lo.Every(_availableColumnNameSymbols, []rune(o.Column)) {
		return fmt.Errorf("ordering column name contains forbidden symbols '%s'", o.Column)
	}

	return nil
}

// String renders the ordering in "-column" notation.
func (o OrderBy) String() string {
	return lo.Ternary(o.Direction == DirectionDESC, "-", "") + o.Column
}

// Reverse flips every direction. "-created", "id" becomes "created", "-id".
func (o Orderings) Reverse() Orderings {
	ret := make(Orderings, 0, len(o))
	for _, ordering := range o {
		ret = append(ret, OrderBy{Column: ordering.Column, Direction: ordering.Direction.Reverse()})
	}

	return ret
}

func (o Orderings) Strings() []string {
	return lo.Map(o, func(ordering OrderBy, _ int) string { return ordering.String() })
}

// Apply orders a gorm query by the orderings, resolving each column against
// the parsed model schema when one is given.
func (o Orderings) Apply(db *gorm.DB, sch *schema.Schema) *gorm.DB {
	for _, ordering := range o {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: columnName(sch, ordering.Column)},
			Desc:   ordering.Direction == DirectionDESC,
		})
	}

	return db
}

func (o Orderings) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	var err error
	for _, ordering := range o {
		err = ordering.validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// ParseOrdering builds Orderings from "-column" notation: a leading "-"
// means descending.
func ParseOrdering(fields ...string) (Orderings, error) {
	ret := make(Orderings, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		ordering := OrderBy{Column: strings.TrimPrefix(field, "-"), Direction: DirectionASC}
		if strings.HasPrefix(field, "-") {
			ordering.Direction = DirectionDESC
		}

		if err := ordering.validate(); err != nil {
			return nil, err
		}
		ret = append(ret, ordering)
	}

	return ret, ret.validate()
}

// ParseSort builds Orderings from a comma separated "?ordering=" value such
// as "-created,name". Aliases are resolved via ColumnMapping. Returns an
// error naming the closest alias if one is not found in the mapping.
func ParseSort(raw string, columnMapping ColumnMapping) (Orderings, error) {
	aliases := lo.Keys(columnMapping)
	stringsOrderings := lo.Compact(strings.Split(raw, ","))
	ret := make(Orderings, 0, len(stringsOrderings))

	for _, stringOrdering := range stringsOrderings {
		stringOrdering = strings.TrimSpace(stringOrdering)
		columnAlias := strings.TrimPrefix(stringOrdering, "-")
		direction := lo.Ternary(strings.HasPrefix(stringOrdering, "-"), DirectionDESC, DirectionASC)

		columnName := columnMapping[columnAlias]
		if columnName == "" {
			return nil, fmt.Errorf("invalid column alias '%s'. closest: '%s'", columnAlias, closestAlias(columnAlias, aliases))
		}

		ret = append(ret, OrderBy{
			Column:    columnName,
			Direction: direction,
		})
	}

	return ret, ret.validate()
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist || (dist == minDist && dataSetAlias < closest) {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}

// levenshtein computes the edit distance between a and b keeping a single
// row of the distance matrix.
func levenshtein(a, b []rune) int {
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur := row[j]
			row[j] = min(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}

	return row[len(b)]
}

func columnName(sch *schema.Schema, name string) string {
	if sch == nil {
		return name
	}
	if field := sch.LookUpField(name); field != nil && field.DBName != "" {
		return field.DBName
	}

	return name
}
