package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lazyrag/authplane/internal/core/domain"
)

func TestAuthService_Register_Success(t *testing.T) {
	f := newFixture(t, nil)

	user, err := f.auth.Register(context.Background(), "alice", "pass123")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.RoleName != domain.RoleUser {
		t.Fatalf("unexpected role: %s", user.RoleName)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.auth.Register(ctx, "alice", "pass123"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.auth.Register(ctx, "alice", "other")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.auth.Register(context.Background(), "  ", "pass"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)

	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, pair.Role)
	assert.Equal(t, domain.TokenTypeBearer, pair.TokenType)
	assert.EqualValues(t, 3600, pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1, f.tokens.live())

	_, wrongPass := f.auth.Login(ctx, "alice", "nope")
	_, unknown := f.auth.Login(ctx, "mallory", "pass123")
	require.Error(t, wrongPass)
	require.Error(t, unknown)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
	assert.True(t, errors.Is(wrongPass, domain.ErrUnauthorized))
	assert.True(t, errors.Is(unknown, domain.ErrUnauthorized))
}

func TestAuthService_ValidateRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	id, err := f.auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, domain.RoleUser, id.Role)
	assert.ElementsMatch(t, domain.DefaultUserPermissions, id.Permissions)
	assert.False(t, id.AllPermissions)
}

func TestAuthService_Validate_AdminReportsAll(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pair, err := f.auth.Login(ctx, "root", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, pair.Role)

	id, err := f.auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, id.AllPermissions)
}

func TestAuthService_Validate_RereadsRole(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	require.NoError(t, f.admin.SetUserRole(ctx, user.ID, f.role(t, domain.RoleAdmin).ID))

	id, err := f.auth.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, id.Role)
}

func TestAuthService_Validate_MissingRoleIsServerError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	require.NoError(t, f.roles.Delete(ctx, f.role(t, domain.RoleUser).ID))

	_, err = f.auth.Validate(ctx, pair.AccessToken)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = f.auth.Register(ctx, "bob", "pass123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestAuthService_Validate_Rejects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.auth.Validate(ctx, "")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = f.auth.Validate(ctx, "garbage")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	ghost, err := f.engine.MintAccessToken(9999, domain.RoleUser)
	require.NoError(t, err)
	_, err = f.auth.Validate(ctx, ghost)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthService_Refresh_RotatesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	next, err := f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, 1, f.tokens.live())

	id, err := f.auth.Validate(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = f.auth.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_Refresh_ConcurrentSingleUse(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.auth.Refresh(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if errors.Is(err, domain.ErrUnauthorized) {
				failures++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, failures)
	assert.Equal(t, 1, f.tokens.live())
}

func TestAuthService_Refresh_Expired(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	f.now = f.now.Add(8 * 24 * time.Hour)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRefreshToken))
}

func TestAuthService_Refresh_MissingOwnerRemovesRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	f.users.delete(user.ID)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Equal(t, 0, f.tokens.live())
}

func TestAuthService_Refresh_PicksUpRoleChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	require.NoError(t, f.admin.SetUserRole(ctx, user.ID, f.role(t, domain.RoleAdmin).ID))

	next, err := f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, next.Role)

	claims, err := f.engine.ValidateAccessToken(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestAuthService_Refresh_StoreError(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("boom")
	f.store.failNext = boom

	_, err := f.auth.Refresh(context.Background(), "whatever")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.store.txCalls)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, pair.RefreshToken))

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthService_Authorize(t *testing.T) {
	reqs := staticRequirements{
		"GET /api/core/documents":       {"document.read"},
		"POST /api/core/documents":      {"document.write"},
		"POST /api/core/documents/bulk": {"document.write", "document.read"},
	}
	f := newFixture(t, reqs)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	pair, err := f.auth.Login(ctx, "alice", "pass123")
	require.NoError(t, err)
	root, err := f.auth.Login(ctx, "root", "rootpass")
	require.NoError(t, err)

	d, err := f.auth.Authorize(ctx, pair.AccessToken, "get", "/api/core/documents/")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = f.auth.Authorize(ctx, pair.AccessToken, "POST", "/api/core/documents")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, []string{"document.write"}, d.Required)

	d, err = f.auth.Authorize(ctx, pair.AccessToken, "POST", "/api/core/documents/bulk")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = f.auth.Authorize(ctx, root.AccessToken, "POST", "/api/core/documents")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// unlisted routes need no token
	d, err = f.auth.Authorize(ctx, "", "DELETE", "/api/core/anything")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = f.auth.Authorize(ctx, "", "GET", "/api/core/documents")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthService_Authorize_DenyUnlisted(t *testing.T) {
	f := newFixture(t, staticRequirements{})
	f.auth.denyUnlisted = true

	d, err := f.auth.Authorize(context.Background(), "", "GET", "/api/core/anything")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
