package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/lazyrag/authplane/internal/core/domain"
)

type stubAdminService struct {
	users map[int64]*domain.User
}

func (s *stubAdminService) ListUsers(context.Context) ([]*domain.User, error) {
	return []*domain.User{s.users[1], s.users[2]}, nil
}

func (s *stubAdminService) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *stubAdminService) SetUserRole(_ context.Context, userID, roleID int64) error {
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.Username == "root" {
		return domain.ErrBootstrapAdminImmutable
	}
	u.RoleID = roleID
	u.RoleName = "editor"
	return nil
}

func newStubAdminService() *stubAdminService {
	return &stubAdminService{users: map[int64]*domain.User{
		1: {ID: 1, Username: "root", RoleID: 1, RoleName: domain.RoleAdmin, PasswordHash: "x"},
		2: {ID: 2, Username: "alice", RoleID: 2, RoleName: domain.RoleUser, PasswordHash: "y"},
	}}
}

func TestUserHandler_ListUsers_HidesHashes(t *testing.T) {
	rec := call(t, NewUserHandler(newStubAdminService()).ListUsers, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "password") {
		t.Fatalf("hash leaked: %s", body)
	}
}

func TestUserHandler_SetUserRole(t *testing.T) {
	h := NewUserHandler(newStubAdminService())

	rec := call(t, h.SetUserRole, http.MethodPatch, "/", `{"role_id":3}`, nil, "id", "2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode(t, rec); resp["role_id"] != float64(3) || resp["role_name"] != "editor" {
		t.Fatalf("unexpected body: %v", resp)
	}

	rec = call(t, h.SetUserRole, http.MethodPatch, "/", `{"role_id":3}`, nil, "id", "1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bootstrap admin, got %d", rec.Code)
	}

	rec = call(t, h.SetUserRole, http.MethodPatch, "/", `{"role_id":0}`, nil, "id", "2")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing role_id, got %d", rec.Code)
	}

	rec = call(t, h.GetUser, http.MethodGet, "/", "", nil, "id", "99")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
