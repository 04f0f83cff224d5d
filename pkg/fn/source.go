// pkg/fn/source.go
package fn

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// ImportSpec is a package the function body refers to.
type ImportSpec struct {
	Name string // explicit local name, empty when the default applies
	Path string
}

// LocalName is the identifier the body uses to refer to the package.
func (i ImportSpec) LocalName() string {
	if i.Name != "" {
		return i.Name
	}
	elems := strings.Split(i.Path, "/")
	last := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(last) {
		last = elems[len(elems)-2]
	}
	last = strings.TrimPrefix(last, "go-")
	if dot := strings.IndexByte(last, '.'); dot >= 0 {
		last = last[:dot]
	}
	return strings.ReplaceAll(last, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// Source is the standalone definition of a server function: enough to emit
// it into a file of its own.
type Source struct {
	// Params holds the names of the context and call parameters.
	// Empty means "ctx" and "call".
	Params  []string
	Body    string
	Imports []ImportSpec
}

func (s Source) paramNames() (ctxName, callName string) {
	ctxName, callName = "ctx", "call"
	if len(s.Params) > 0 && s.Params[0] != "" {
		ctxName = s.Params[0]
	}
	if len(s.Params) > 1 && s.Params[1] != "" {
		callName = s.Params[1]
	}
	return ctxName, callName
}

// CtxParam and CallParam name the two parameters in generated code.
func (s Source) CtxParam() string  { c, _ := s.paramNames(); return c }
func (s Source) CallParam() string { _, c := s.paramNames(); return c }

// standalone renders the source as a complete Go file.
func (s Source) standalone(name string) string {
	var b strings.Builder
	b.WriteString("package p\n\n")
	for _, im := range s.Imports {
		if im.Name != "" {
			fmt.Fprintf(&b, "import %s %q\n", im.Name, im.Path)
		} else {
			fmt.Fprintf(&b, "import %q\n", im.Path)
		}
	}
	ctxName, callName := s.paramNames()
	fmt.Fprintf(&b, "\nfunc %s(%s context.Context, %s *%s.Call) (any, error) {\n%s\n}\n",
		name, ctxName, callName, RuntimeAlias, s.Body)
	return b.String()
}

// importsName reports whether name is taken at file scope of the generated
// handler by one of its imports.
func (s Source) importsName(name string) bool {
	switch name {
	case "context", "http", RuntimeAlias:
		return true
	}
	for _, im := range s.Imports {
		if im.LocalName() == name {
			return true
		}
	}
	return false
}

// Validate checks that the source parses as a single function and that every
// identifier it uses is declared in the body, is a parameter, is predeclared,
// or names one of the declared imports. name must not collide with an import
// of the generated handler.
func (s Source) Validate(name string) error {
	if s.importsName(name) {
		return fmt.Errorf("%w: %q is also an import name in the generated handler", ErrInvalidName, name)
	}
	if len(s.Params) > 2 {
		return fmt.Errorf("fn: %s: want 2 parameters, got %d", name, len(s.Params))
	}
	if strings.TrimSpace(s.Body) == "" {
		return fmt.Errorf("%w: %s has an empty body", ErrNoSource, name)
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name+".go", s.standalone(name), parser.AllErrors)
	if err != nil {
		return fmt.Errorf("fn: %s: parse source: %w", name, err)
	}
	funcs := 0
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			funcs++
		case *ast.GenDecl:
			if d.Tok != token.IMPORT {
				return fmt.Errorf("fn: %s: source declares %s outside the function", name, d.Tok)
			}
		}
	}
	if funcs != 1 {
		return fmt.Errorf("fn: %s: source must declare exactly one function", name)
	}

	known := map[string]bool{"context": true, RuntimeAlias: true}
	for _, im := range s.Imports {
		if im.Name == "." {
			return fmt.Errorf("fn: %s: dot import of %q is not supported", name, im.Path)
		}
		known[im.LocalName()] = true
	}
	var free []string
	for _, id := range f.Unresolved {
		if known[id.Name] || types.Universe.Lookup(id.Name) != nil {
			continue
		}
		if !slices.Contains(free, id.Name) {
			free = append(free, id.Name)
		}
	}
	if len(free) > 0 {
		return fmt.Errorf("%w: %s refers to %s", ErrClosure, name, strings.Join(free, ", "))
	}
	return nil
}

// SourceOf reads the declaration of f from the Go file it was compiled from.
// Only top-level functions qualify: function literals and method values
// carry state that cannot be written into a standalone file.
func SourceOf(f Func) (Source, error) {
	rf := runtime.FuncForPC(reflect.ValueOf(f).Pointer())
	if rf == nil {
		return Source{}, ErrNoSource
	}
	full := rf.Name()
	short := full
	if i := strings.LastIndexByte(short, '/'); i >= 0 {
		short = short[i+1:]
	}
	if i := strings.IndexByte(short, '.'); i >= 0 {
		short = short[i+1:]
	}
	if strings.ContainsAny(short, ".[") || strings.HasSuffix(short, "-fm") {
		return Source{}, fmt.Errorf("%w: %s is not a top-level function", ErrClosure, full)
	}

	file, _ := rf.FileLine(rf.Entry())
	src, err := os.ReadFile(file)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrNoSource, err)
	}
	fset := token.NewFileSet()
	af, err := parser.ParseFile(fset, file, src, parser.SkipObjectResolution)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrNoSource, err)
	}

	var decl *ast.FuncDecl
	for _, d := range af.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Recv == nil && fd.Name.Name == short && fd.Body != nil {
			decl = fd
			break
		}
	}
	if decl == nil {
		return Source{}, fmt.Errorf("%w: %s not found in %s", ErrNoSource, short, file)
	}

	var params []string
	for _, field := range decl.Type.Params.List {
		if len(field.Names) == 0 {
			params = append(params, "_")
			continue
		}
		for _, n := range field.Names {
			params = append(params, n.Name)
		}
	}

	lb := fset.Position(decl.Body.Lbrace).Offset
	rb := fset.Position(decl.Body.Rbrace).Offset

	return Source{
		Params:  params,
		Body:    strings.Trim(string(src[lb+1:rb]), "\n"),
		Imports: usedImports(af, decl.Body),
	}, nil
}

// usedImports returns the file imports that body selects from.
func usedImports(f *ast.File, body *ast.BlockStmt) []ImportSpec {
	used := map[string]bool{}
	ast.Inspect(body, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
		}
		return true
	})

	var out []ImportSpec
	for _, is := range f.Imports {
		path, err := strconv.Unquote(is.Path.Value)
		if err != nil {
			continue
		}
		spec := ImportSpec{Path: path}
		if is.Name != nil {
			if is.Name.Name == "_" {
				continue
			}
			spec.Name = is.Name.Name
		}
		if used[spec.LocalName()] {
			out = append(out, spec)
		}
	}
	return out
}
