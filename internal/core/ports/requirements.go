package ports

// RequirementSource answers which permission groups a route requires.
// found is false when the route has no declared requirement.
type RequirementSource interface {
	Required(method, path string) (perms []string, found bool)
}
