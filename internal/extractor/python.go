package extractor

import (
	"regexp"
	"strings"

	"github.com/lazyrag/authplane/internal/manifest"
)

var (
	permissionDecoratorRe = regexp.MustCompile(`(?s)^@(?:[\w.]+\.)?permission_required\s*\((.*)\)\s*$`)
	routeDecoratorRe      = regexp.MustCompile(`(?s)^@(\w+)\.(\w+)\s*\(\s*(?:path\s*=\s*)?(['"])(.*?)['"]`)
	stringLitRe           = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
	defRe                 = regexp.MustCompile(`^(?:async\s+)?def\s+\w+`)
)

// PythonDialect matches FastAPI-style handlers:
//
//	@app.get("/api/x")
//	@permission_required("x.read", "x.write")
//	def handler(...):
//
// Decorators may span several lines and appear in any order.
type PythonDialect struct {
	routers map[string]struct{}
}

// NewPythonDialect recognises route decorators on the given router objects,
// by default app and router.
func NewPythonDialect(routers ...string) *PythonDialect {
	if len(routers) == 0 {
		routers = []string{"app", "router"}
	}
	d := &PythonDialect{routers: make(map[string]struct{}, len(routers))}
	for _, r := range routers {
		d.routers[r] = struct{}{}
	}
	return d
}

func (d *PythonDialect) Name() string { return "python" }

func (d *PythonDialect) Match(path string) bool {
	return strings.HasSuffix(path, ".py")
}

func (d *PythonDialect) Extract(_ string, src []byte) ([]manifest.Entry, error) {
	var (
		out     []manifest.Entry
		pending []string
		current strings.Builder
		depth   int
	)

	for _, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)

		if depth > 0 {
			current.WriteString(" ")
			current.WriteString(trimmed)
			depth += parenDelta(trimmed)
			if depth <= 0 {
				pending = append(pending, current.String())
				current.Reset()
				depth = 0
			}
			continue
		}

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		case strings.HasPrefix(trimmed, "@"):
			if delta := parenDelta(trimmed); delta > 0 {
				current.WriteString(trimmed)
				depth = delta
			} else {
				pending = append(pending, trimmed)
			}
		case defRe.MatchString(trimmed):
			if e, ok := d.entry(pending); ok {
				out = append(out, e)
			}
			pending = nil
		default:
			pending = nil
		}
	}
	return out, nil
}

func (d *PythonDialect) entry(decorators []string) (manifest.Entry, bool) {
	var (
		e        manifest.Entry
		hasRoute bool
		hasPerm  bool
	)
	for _, dec := range decorators {
		if m := permissionDecoratorRe.FindStringSubmatch(dec); m != nil {
			for _, lit := range stringLitRe.FindAllStringSubmatch(m[1], -1) {
				e.Permissions = append(e.Permissions, lit[1]+lit[2])
			}
			hasPerm = len(e.Permissions) > 0
			continue
		}
		if m := routeDecoratorRe.FindStringSubmatch(dec); m != nil {
			if _, ok := d.routers[m[1]]; !ok {
				continue
			}
			e.Method, e.Path = m[2], m[4]
			hasRoute = true
		}
	}
	return e, hasRoute && hasPerm
}

// parenDelta counts unbalanced parentheses outside string literals.
func parenDelta(s string) int {
	var (
		delta int
		quote rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			delta++
		case r == ')':
			delta--
		case r == '#':
			return delta
		}
	}
	return delta
}
