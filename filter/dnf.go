package filter

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lookup is the comparison applied by a Condition.
type Lookup string

const (
	LookupExact       Lookup = "exact"
	LookupGT          Lookup = "gt"
	LookupGTE         Lookup = "gte"
	LookupLT          Lookup = "lt"
	LookupLTE         Lookup = "lte"
	LookupIn          Lookup = "in"
	LookupIContains   Lookup = "icontains"
	LookupIStartsWith Lookup = "istartswith"
	LookupIEndsWith   Lookup = "iendswith"
)

type (
	// Condition is Lookup(Column, Value).
	Condition struct {
		Column string
		Lookup Lookup
		Value  any
	}

	// Conjunction joins conditions with AND.
	Conjunction []Condition

	// DNF represents the disjunctive normal form of a filter. Each
	// conjunction is joined by OR, and each conjunction is a list of
	// conditions joined by AND.
	//
	//	DNF = X1 OR X2 ... OR Xn, where Xi = Ai1 AND Ai2 ... AND Aim.
	DNF []Conjunction
)

// Expression converts the condition into a gorm expression on the current
// table.
//
// Example:
//
//	Condition{Column: "name", Lookup: LookupIStartsWith, Value: "Jo"}
//
// Result:
//
//	LOWER("users"."name") LIKE 'jo%' ESCAPE '!'
func (c Condition) Expression() clause.Expression {
	column := clause.Column{Table: clause.CurrentTable, Name: c.Column}

	switch c.Lookup {
	case LookupGT:
		return clause.Gt{Column: column, Value: c.Value}
	case LookupGTE:
		return clause.Gte{Column: column, Value: c.Value}
	case LookupLT:
		return clause.Lt{Column: column, Value: c.Value}
	case LookupLTE:
		return clause.Lte{Column: column, Value: c.Value}
	case LookupIn:
		values, _ := c.Value.([]any)
		return clause.IN{Column: column, Values: values}
	case LookupIContains:
		return like(column, "%"+escapeLike(c.Value)+"%")
	case LookupIStartsWith:
		return like(column, escapeLike(c.Value)+"%")
	case LookupIEndsWith:
		return like(column, "%"+escapeLike(c.Value))
	default:
		return clause.Eq{Column: column, Value: c.Value}
	}
}

// likeEscape is the LIKE escape character. A backslash would need
// doubling inside MySQL string literals.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// escapeLike makes v match literally inside a LIKE pattern.
func escapeLike(v any) string {
	return likeEscaper.Replace(fmt.Sprint(v))
}

func like(column clause.Column, pattern string) clause.Expression {
	return clause.Expr{
		SQL:  "LOWER(?) LIKE ? ESCAPE '" + likeEscape + "'",
		Vars: []any{column, strings.ToLower(pattern)},
	}
}

// Expression converts a conjunction (K1, K2, K3) into "K1 AND K2 AND K3".
// An empty conjunction yields nil.
func (c Conjunction) Expression() clause.Expression {
	andExpressions := make([]clause.Expression, 0, len(c))
	for _, condition := range c {
		andExpressions = append(andExpressions, condition.Expression())
	}

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// Expression joins the non-empty conjunctions with OR. An empty DNF yields
// nil, meaning no filtering.
func (d DNF) Expression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(d))

	for _, conjunction := range d {
		andExpressions := conjunction.Expression()
		if andExpressions == nil {
			continue
		}

		orExpressions = append(orExpressions, andExpressions)
	}

	if len(orExpressions) == 1 {
		return orExpressions[0]
	} else if len(orExpressions) > 1 {
		return clause.Or(orExpressions...)
	}

	return nil
}

// And combines two DNFs with AND by distributing the disjunctions:
// (A OR B) AND (C OR D) becomes (A AND C) OR (A AND D) OR (B AND C) OR (B AND D).
// An empty operand means "no condition".
func (d DNF) And(other DNF) DNF {
	if len(other) == 0 {
		return d
	}
	if len(d) == 0 {
		return other
	}

	ret := make(DNF, 0, len(d)*len(other))
	for _, left := range d {
		for _, right := range other {
			merged := make(Conjunction, 0, len(left)+len(right))
			merged = append(merged, left...)
			merged = append(merged, right...)
			ret = append(ret, merged)
		}
	}

	return ret
}

// Apply adds the DNF as a WHERE condition.
func (d DNF) Apply(db *gorm.DB) *gorm.DB {
	exp := d.Expression()
	if exp == nil {
		return db
	}

	return db.Where(exp)
}
