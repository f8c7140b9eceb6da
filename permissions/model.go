package permissions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"

	"github.com/Alp4ka/fango/auth"
	"github.com/Alp4ka/fango/httperr"
)

const (
	DefaultCacheTTL  = 10 * time.Second
	defaultCacheSize = 1024
)

// Mapping lists, per HTTP method, the permissions of which any one grants
// access. "{app_label}" and "{model_name}" are replaced with the target.
// A method mapped to an empty list is open to everybody, a method missing
// from the mapping is closed.
type Mapping map[string][]string

// DefaultMapping follows the view/add/change/delete model permissions.
func DefaultMapping() Mapping {
	view := []string{"{app_label}.view_{model_name}"}
	change := []string{"{app_label}.change_{model_name}"}
	return Mapping{
		http.MethodGet:     view,
		http.MethodHead:    view,
		http.MethodOptions: view,
		http.MethodPost:    {"{app_label}.add_{model_name}"},
		http.MethodPut:     change,
		http.MethodPatch:   change,
		http.MethodDelete:  {"{app_label}.delete_{model_name}"},
	}
}

func (m Mapping) required(method string, target Target) ([]string, bool) {
	templates, ok := m[method]
	if !ok {
		return nil, false
	}

	replacer := strings.NewReplacer("{app_label}", target.AppLabel, "{model_name}", target.ModelName)
	perms := make([]string, len(templates))
	for i, tmpl := range templates {
		perms[i] = replacer.Replace(tmpl)
	}
	return perms, true
}

// ModelPermissions grants a request when the user holds one of the
// permissions its method maps to. User permissions are cached per user.
type ModelPermissions struct {
	db      *gorm.DB
	mapping Mapping
	cache   *expirable.LRU[int64, auth.PermissionSet]
}

type Option func(*ModelPermissions)

func WithMapping(m Mapping) Option {
	return func(p *ModelPermissions) { p.mapping = m }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(p *ModelPermissions) {
		p.cache = expirable.NewLRU[int64, auth.PermissionSet](defaultCacheSize, nil, ttl)
	}
}

func NewModelPermissions(db *gorm.DB, opts ...Option) *ModelPermissions {
	p := &ModelPermissions{
		db:      db,
		mapping: DefaultMapping(),
		cache:   expirable.NewLRU[int64, auth.PermissionSet](defaultCacheSize, nil, DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ModelPermissions) Check(r *http.Request, target Target) error {
	required, ok := p.mapping.required(r.Method, target)
	if !ok {
		return errMethodNotAllowed
	}
	if len(required) == 0 {
		return nil
	}

	user, err := auth.UserFromContext(r.Context())
	if err != nil && !errors.Is(err, auth.ErrNotAuthenticated) {
		return err
	}

	granted, err := p.userPermissions(r.Context(), user)
	if err != nil {
		return err
	}

	for _, perm := range required {
		if granted.Has(perm) {
			return nil
		}
	}
	return errMethodNotAllowed
}

func (p *ModelPermissions) userPermissions(ctx context.Context, user *auth.User) (auth.PermissionSet, error) {
	if user == nil {
		return auth.PermissionSet{}, nil
	}
	if set, ok := p.cache.Get(user.ID); ok {
		return set, nil
	}

	set, err := auth.Permissions(ctx, p.db, user)
	if err != nil {
		return auth.PermissionSet{}, err
	}
	p.cache.Add(user.ID, set)
	return set, nil
}

var errMethodNotAllowed = httperr.MethodNotAllowed("Method not allowed.")
