// Package auth implements bearer JWT authentication over the auth_user
// table layout, Django compatible password hashes and the login and
// register views.
package auth

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// User maps the auth_user table.
type User struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	Password    string     `gorm:"size:128" json:"-"`
	LastLogin   *time.Time `json:"last_login"`
	IsSuperuser bool       `json:"is_superuser"`
	Username    string     `gorm:"size:150;uniqueIndex" json:"username"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	Email       string     `gorm:"size:254;index" json:"email"`
	IsStaff     bool       `json:"is_staff"`
	IsActive    bool       `json:"is_active"`
	DateJoined  time.Time  `gorm:"autoCreateTime" json:"date_joined"`

	Groups          []Group      `gorm:"many2many:auth_user_groups" json:"-"`
	UserPermissions []Permission `gorm:"many2many:auth_user_user_permissions" json:"-"`
}

func (User) TableName() string { return "auth_user" }

type ContentType struct {
	ID       int64  `gorm:"primaryKey"`
	AppLabel string `gorm:"size:100"`
	Model    string `gorm:"size:100"`
}

func (ContentType) TableName() string { return "django_content_type" }

type Permission struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:255"`
	ContentTypeID int64
	ContentType   ContentType
	Codename      string `gorm:"size:100"`
}

func (Permission) TableName() string { return "auth_permission" }

type Group struct {
	ID          int64        `gorm:"primaryKey"`
	Name        string       `gorm:"size:150;uniqueIndex"`
	Permissions []Permission `gorm:"many2many:auth_group_permissions"`
}

func (Group) TableName() string { return "auth_group" }

// Models lists every table of the package, for migrations in tests and
// examples.
func Models() []any {
	return []any{&ContentType{}, &Permission{}, &Group{}, &User{}}
}

// PermissionSet holds "<app_label>.<codename>" strings.
type PermissionSet struct {
	all   bool
	codes map[string]struct{}
}

// Has reports whether the set grants perm.
func (s PermissionSet) Has(perm string) bool {
	if s.all {
		return true
	}
	_, ok := s.codes[perm]
	return ok
}

// Permissions collects the direct and group permissions of user. Inactive
// users have none, active superusers have all.
func Permissions(ctx context.Context, db *gorm.DB, user *User) (PermissionSet, error) {
	if user == nil || !user.IsActive {
		return PermissionSet{}, nil
	}
	if user.IsSuperuser {
		return PermissionSet{all: true}, nil
	}

	db = db.Session(&gorm.Session{NewDB: true, Context: ctx})
	direct := db.Table("auth_user_user_permissions").Select("permission_id").Where("user_id = ?", user.ID)
	viaGroups := db.Table("auth_group_permissions AS gp").
		Select("gp.permission_id").
		Joins("JOIN auth_user_groups AS ug ON ug.group_id = gp.group_id").
		Where("ug.user_id = ?", user.ID)

	var rows []struct {
		AppLabel string
		Codename string
	}
	err := db.Table("auth_permission AS p").
		Select("ct.app_label, p.codename").
		Joins("JOIN django_content_type AS ct ON ct.id = p.content_type_id").
		Where("p.id IN (?) OR p.id IN (?)", direct, viaGroups).
		Scan(&rows).Error
	if err != nil {
		return PermissionSet{}, fmt.Errorf("load permissions of user %d: %w", user.ID, err)
	}

	set := PermissionSet{codes: make(map[string]struct{}, len(rows))}
	for _, row := range rows {
		set.codes[row.AppLabel+"."+row.Codename] = struct{}{}
	}
	return set, nil
}
