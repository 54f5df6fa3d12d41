package domain

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultPermissionGroups seeds a fresh store when no permission-group file is configured.
var DefaultPermissionGroups = []string{
	"user.read",
	"user.write",
	"document.read",
	"document.write",
	"qa.read",
}

// DefaultUserPermissions are granted to the built-in user role at bootstrap.
var DefaultUserPermissions = []string{"user.read", "document.read"}

// Role is a named bundle of permission groups.
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	BuiltIn     bool     `json:"built_in"`
	Permissions []string `json:"permissions,omitempty"`
}

// IsAdmin reports whether r is the built-in admin role, which satisfies every check.
func (r *Role) IsAdmin() bool {
	return r != nil && r.BuiltIn && r.Name == RoleAdmin
}

// PermissionGroup is a flat capability name such as "document.write".
type PermissionGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
