package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lazyrag/authplane/internal/core/domain"
	"github.com/lazyrag/authplane/internal/token"
)

type staticRequirements map[string][]string

func (s staticRequirements) Required(method, path string) ([]string, bool) {
	perms, ok := s[method+" "+path]
	return perms, ok
}

type fixture struct {
	store  *memStore
	users  memUsers
	roles  memRoles
	tokens memTokens
	cache  *memCache

	engine *token.Engine
	auth   *AuthService
	perms  *PermissionService
	admin  *AdminService
	boot   *Bootstrapper
	now    time.Time
}

func newFixture(t *testing.T, reqs staticRequirements) *fixture {
	t.Helper()

	f := &fixture{store: newMemStore(), cache: newMemCache(), now: time.Now().UTC()}
	f.users = memUsers{f.store}
	f.roles = memRoles{f.store}
	f.tokens = memTokens{f.store}

	engine, err := token.NewEngine(token.Options{Secret: "test-secret", Now: func() time.Time { return f.now }})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f.engine = engine

	hasher := BcryptHasher{Cost: bcrypt.MinCost}
	log := zerolog.Nop()

	opts := AuthOptions{Engine: engine, Hasher: hasher, Log: log}
	if reqs != nil {
		opts.Requirements = reqs
	}
	f.auth = NewAuthService(f.users, f.roles, f.tokens, memTx{f.store}, opts)
	f.perms = NewPermissionService(f.roles, memGroups{f.store}, f.users, f.cache, log)
	f.admin = NewAdminService(f.users, f.roles, "root", log)
	f.boot = NewBootstrapper(f.roles, memGroups{f.store}, f.users, hasher,
		BootstrapOptions{AdminUsername: "root", AdminPassword: "rootpass"}, log)

	if err := f.boot.Run(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return f
}

func (f *fixture) role(t *testing.T, name string) *domain.Role {
	t.Helper()
	r, err := f.roles.FindByName(context.Background(), name)
	if err != nil {
		t.Fatalf("role %q: %v", name, err)
	}
	return r
}
