package domain

// Identity is the resolved caller of a request: who they are, their current
// role and the permission groups that role grants.
type Identity struct {
	UserID         int64
	Username       string
	Role           string
	Permissions    []string
	AllPermissions bool
}

// IsAdmin reports whether the identity carries the built-in admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Authorize decides whether the identity may access a route requiring any of
// required. An empty requirement allows. Admin always allows. Otherwise at
// least one required group must be held.
func Authorize(id Identity, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if id.IsAdmin() || id.AllPermissions {
		return true
	}
	held := make(map[string]struct{}, len(id.Permissions))
	for _, p := range id.Permissions {
		held[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// Decision is the outcome of an authorize call against the manifest.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Required []string `json:"required,omitempty"`
}
