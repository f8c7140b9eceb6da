package pagination

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// Operator compares the position column against a cursor position.
type Operator string

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"
)

// Expression builds "column <op> value".
func (o Operator) Expression(column clause.Column, value any) clause.Expression {
	switch o {
	case OperatorGT:
		return clause.Gt{Column: column, Value: value}
	case OperatorLT:
		return clause.Lt{Column: column, Value: value}
	default:
		panic(fmt.Errorf("pagination: no expression for operator %q", string(o)))
	}
}
