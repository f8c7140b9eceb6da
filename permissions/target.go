package permissions

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// AppLabeler lets a model name the application it belongs to.
type AppLabeler interface {
	AppLabel() string
}

// TargetOf derives the permission target of model. The model name is the
// lowercased struct name. The app label comes from AppLabel when the model
// implements AppLabeler, otherwise from the table name prefix before the
// first underscore.
func TargetOf(db *gorm.DB, model any) (Target, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return Target{}, fmt.Errorf("parse model schema: %w", err)
	}

	target := Target{ModelName: strings.ToLower(stmt.Schema.ModelType.Name())}
	if labeler, ok := model.(AppLabeler); ok {
		target.AppLabel = labeler.AppLabel()
		return target, nil
	}

	table := stmt.Schema.Table
	if prefix, _, ok := strings.Cut(table, "_"); ok {
		target.AppLabel = prefix
	} else {
		target.AppLabel = table
	}
	return target, nil
}
