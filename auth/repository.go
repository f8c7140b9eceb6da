package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

var ErrUserExists = errors.New("user already exists")

// Repository reads and writes users.
type Repository struct {
	db     *gorm.DB
	hasher Hasher
	// fields limits the columns loaded for the request user.
	fields []string
}

func NewRepository(db *gorm.DB, hasher Hasher, requestUserFields ...string) *Repository {
	r := &Repository{db: db, hasher: hasher}
	if len(requestUserFields) > 0 {
		r.fields = lo.Uniq(append([]string{"id"}, requestUserFields...))
	}
	return r
}

// Get loads the user with id, or returns nil when there is none. Only the
// configured request user fields are selected.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	q := r.db.WithContext(ctx)
	if len(r.fields) > 0 {
		q = q.Select(r.fields)
	}

	return first(q.Where("id = ?", id))
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return first(r.db.WithContext(ctx).Where("email = ?", email))
}

// Register creates an active user and stores its password hash in a
// second, password only update.
func (r *Repository) Register(ctx context.Context, email, password string) (*User, error) {
	user := &User{Email: email, Username: email, IsActive: true}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ? OR username = ?", email, email).Count(&count).Error; err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if count > 0 {
			return ErrUserExists
		}

		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		return r.setPassword(tx, user, password)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) SetPassword(ctx context.Context, user *User, password string) error {
	return r.setPassword(r.db.WithContext(ctx), user, password)
}

func (r *Repository) setPassword(tx *gorm.DB, user *User, password string) error {
	encoded, err := r.hasher.Encode(password)
	if err != nil {
		return err
	}

	if err = tx.Model(user).Update("password", encoded).Error; err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	user.Password = encoded
	return nil
}

// Authenticate returns the active user with the given email and password,
// or nil.
func (r *Repository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		// keep the response time close to a real check
		_, _ = r.hasher.Encode(password)
		return nil, nil
	}
	if !user.IsActive || !r.hasher.Verify(password, user.Password) {
		return nil, nil
	}

	return user, nil
}

func first(q *gorm.DB) (*User, error) {
	var user User
	res := q.Limit(1).Find(&user)
	if res.Error != nil {
		return nil, fmt.Errorf("load user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &user, nil
}
