package domain

import "testing"

func TestAuthorize(t *testing.T) {
	reader := Identity{UserID: 7, Role: RoleUser, Permissions: []string{"document.read"}}
	admin := Identity{UserID: 1, Role: RoleAdmin}

	cases := []struct {
		name     string
		id       Identity
		required []string
		want     bool
	}{
		{"no requirement allows anyone", Identity{}, nil, true},
		{"admin without explicit groups", admin, []string{"document.write"}, true},
		{"missing group denies", reader, []string{"document.write"}, false},
		{"any overlap allows", reader, []string{"document.read", "document.write"}, true},
		{"exact group allows", reader, []string{"document.read"}, true},
		{"empty holder denies", Identity{Role: RoleUser}, []string{"qa.read"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.id, tc.required); got != tc.want {
				t.Fatalf("Authorize(%+v, %v) = %v, want %v", tc.id, tc.required, got, tc.want)
			}
		})
	}
}

func TestRole_IsAdmin(t *testing.T) {
	if !(&Role{Name: RoleAdmin, BuiltIn: true}).IsAdmin() {
		t.Fatalf("built-in admin should be admin")
	}
	if (&Role{Name: RoleAdmin}).IsAdmin() {
		t.Fatalf("operator-created role named admin must not bypass checks")
	}
	var r *Role
	if r.IsAdmin() {
		t.Fatalf("nil role is not admin")
	}
}
