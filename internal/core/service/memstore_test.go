package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// memStore is an in-memory implementation of every repository port. A single
// mutex makes each call atomic, which is all the concurrency tests need.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	users    map[int64]*domain.User
	roles    map[int64]*domain.Role
	groups   map[string]int64
	grants   map[int64]map[string]struct{}
	refresh  map[string]*domain.RefreshToken
	txCalls  int
	failNext error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]*domain.User),
		roles:   make(map[int64]*domain.Role),
		groups:  make(map[string]int64),
		grants:  make(map[int64]map[string]struct{}),
		refresh: make(map[string]*domain.RefreshToken),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneRole(r *domain.Role) *domain.Role {
	if r == nil {
		return nil
	}
	c := *r
	c.Permissions = append([]string(nil), r.Permissions...)
	return &c
}

// users

type memUsers struct{ *memStore }

func (r memUsers) withRole(u *domain.User) *domain.User {
	c := cloneUser(u)
	if role, ok := r.roles[u.RoleID]; ok {
		c.RoleName = role.Name
	}
	return c
}

func (r memUsers) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, domain.ErrUserExists
		}
	}
	c := cloneUser(user)
	c.ID = r.id()
	r.users[c.ID] = c
	return r.withRole(c), nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return r.withRole(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.withRole(u), nil
}

func (r memUsers) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, r.withRole(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) UpdateRole(_ context.Context, userID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RoleID = roleID
	return nil
}

func (r memUsers) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r memUsers) CountByRole(_ context.Context, roleID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (r memUsers) delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// roles

type memRoles struct{ *memStore }

func (r memRoles) Create(_ context.Context, name string, builtIn bool) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			return nil, domain.ErrRoleExists
		}
	}
	role := &domain.Role{ID: r.id(), Name: name, BuiltIn: builtIn}
	r.roles[role.ID] = role
	return cloneRole(role), nil
}

func (r memRoles) FindByID(_ context.Context, id int64) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	return cloneRole(role), nil
}

func (r memRoles) FindByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			return cloneRole(role), nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (r memRoles) List(_ context.Context) ([]*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		c := cloneRole(role)
		c.Permissions = r.perms(role.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memRoles) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, id)
	delete(r.grants, id)
	return nil
}

func (r memRoles) perms(roleID int64) []string {
	out := []string{}
	for name := range r.grants[roleID] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r memRoles) Permissions(_ context.Context, roleID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perms(roleID), nil
}

func (r memRoles) SetPermissions(_ context.Context, roleID int64, groups []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[roleID] = make(map[string]struct{})
	r.grantLocked(roleID, groups)
	return nil
}

func (r memRoles) Grant(_ context.Context, roleID int64, groups []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grants[roleID] == nil {
		r.grants[roleID] = make(map[string]struct{})
	}
	r.grantLocked(roleID, groups)
	return nil
}

func (r memRoles) grantLocked(roleID int64, groups []string) {
	for _, g := range groups {
		if _, ok := r.groups[g]; ok {
			r.grants[roleID][g] = struct{}{}
		}
	}
}

func (r memRoles) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.roles)), nil
}

// permission groups

type memGroups struct{ *memStore }

func (r memGroups) List(_ context.Context) ([]*domain.PermissionGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.PermissionGroup, 0, len(r.groups))
	for name, id := range r.groups {
		out = append(out, &domain.PermissionGroup{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memGroups) Ensure(_ context.Context, name string) (*domain.PermissionGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.groups[name]
	if !ok {
		id = r.id()
		r.groups[name] = id
	}
	return &domain.PermissionGroup{ID: id, Name: name}, nil
}

// refresh tokens

type memTokens struct{ *memStore }

func (r memTokens) Create(_ context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refresh[t.TokenHash]; ok {
		return domain.ErrConflict
	}
	c := *t
	c.ID = r.id()
	r.refresh[t.TokenHash] = &c
	return nil
}

func (r memTokens) Consume(_ context.Context, digest string, now time.Time) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return nil, err
	}
	t, ok := r.refresh[digest]
	if !ok || !t.Live(now) {
		return nil, domain.ErrInvalidRefreshToken
	}
	delete(r.refresh, digest)
	c := *t
	return &c, nil
}

func (r memTokens) Delete(_ context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refresh, digest)
	return nil
}

func (r memTokens) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refresh)
}

// transactor

type memTx struct{ *memStore }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.txCalls++
	t.mu.Unlock()
	return fn(ctx)
}

// permission cache

type memCache struct {
	mu          sync.Mutex
	data        map[string][]string
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]string)}
}

func (c *memCache) Get(_ context.Context, role string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[role]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, role string, groups []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[role] = groups
	return nil
}

func (c *memCache) Invalidate(_ context.Context, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, role)
	c.invalidated = append(c.invalidated, role)
	return nil
}
