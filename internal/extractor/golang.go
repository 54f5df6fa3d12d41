package extractor

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/lazyrag/authplane/internal/manifest"
)

// DefaultGoFuncs are the registration helpers recognised in Go sources.
var DefaultGoFuncs = []string{"handleAPI", "HandleAPI", "Handle"}

// GoDialect finds two shapes in Go sources:
//
//	handleAPI(mux, "GET", "/api/x", []string{"x.read"}, h)
//	routes.Route{Method: http.MethodGet, Path: "/api/x", Permissions: []string{"x.read"}}
//
// Methods may be string literals or net/http Method constants. Test files are skipped.
type GoDialect struct {
	funcs map[string]struct{}
}

func NewGoDialect(funcs ...string) *GoDialect {
	if len(funcs) == 0 {
		funcs = DefaultGoFuncs
	}
	d := &GoDialect{funcs: make(map[string]struct{}, len(funcs))}
	for _, f := range funcs {
		d.funcs[f] = struct{}{}
	}
	return d
}

func (d *GoDialect) Name() string { return "go" }

func (d *GoDialect) Match(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

func (d *GoDialect) Extract(path string, src []byte) ([]manifest.Entry, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	var out []manifest.Entry
	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			if !d.registers(node.Fun) {
				return true
			}
			if e, ok := entryFromArgs(node.Args); ok {
				out = append(out, e)
			}
		case *ast.CompositeLit:
			if e, ok := entryFromFields(node.Elts); ok {
				out = append(out, e)
			}
		}
		return true
	})
	return out, nil
}

func (d *GoDialect) registers(fun ast.Expr) bool {
	var name string
	switch f := fun.(type) {
	case *ast.Ident:
		name = f.Name
	case *ast.SelectorExpr:
		name = f.Sel.Name
	default:
		return false
	}
	_, ok := d.funcs[name]
	return ok
}

// entryFromArgs looks for consecutive method, path, []string arguments.
func entryFromArgs(args []ast.Expr) (manifest.Entry, bool) {
	for i := 0; i+2 < len(args); i++ {
		method, ok := methodExpr(args[i])
		if !ok {
			continue
		}
		path, ok := stringLit(args[i+1])
		if !ok {
			continue
		}
		perms, ok := stringSlice(args[i+2])
		if !ok || len(perms) == 0 {
			continue
		}
		return manifest.Entry{Method: method, Path: path, Permissions: perms}, true
	}
	return manifest.Entry{}, false
}

// entryFromFields reads a keyed literal with Method, Path and Permissions fields.
func entryFromFields(elts []ast.Expr) (manifest.Entry, bool) {
	var (
		e                  manifest.Entry
		hasMethod, hasPath bool
	)
	for _, elt := range elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return manifest.Entry{}, false
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			continue
		}
		switch key.Name {
		case "Method":
			e.Method, hasMethod = methodExpr(kv.Value)
		case "Path":
			e.Path, hasPath = stringLit(kv.Value)
		case "Permissions":
			e.Permissions, _ = stringSlice(kv.Value)
		}
	}
	if !hasMethod || !hasPath || len(e.Permissions) == 0 {
		return manifest.Entry{}, false
	}
	return e, true
}

func stringLit(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}

func methodExpr(expr ast.Expr) (string, bool) {
	if s, ok := stringLit(expr); ok {
		return s, true
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "http" || !strings.HasPrefix(sel.Sel.Name, "Method") {
		return "", false
	}
	return strings.ToUpper(strings.TrimPrefix(sel.Sel.Name, "Method")), true
}

func stringSlice(expr ast.Expr) ([]string, bool) {
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, false
	}
	arr, ok := lit.Type.(*ast.ArrayType)
	if !ok || arr.Len != nil {
		return nil, false
	}
	if elt, ok := arr.Elt.(*ast.Ident); !ok || elt.Name != "string" {
		return nil, false
	}

	out := make([]string, 0, len(lit.Elts))
	for _, e := range lit.Elts {
		if s, ok := stringLit(e); ok {
			out = append(out, s)
		}
	}
	return out, true
}
