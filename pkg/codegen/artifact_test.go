package codegen

import (
	"go/ast"
	"go/build"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runtimePath stands in for the fn package when type-checking artifacts, so
// the check needs only standard library export data.
const runtimePath = "serverfn.test/rt"

const runtimeSrc = `package rt

import (
	"context"
	"net/http"
	"net/url"
)

type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

func (c *Call) Decode(v any) error { return nil }

type Func func(ctx context.Context, call *Call) (any, error)

func Serve(w http.ResponseWriter, r *http.Request, name string, f Func) {}
`

type artifactImporter struct {
	std types.Importer
	rt  *types.Package
}

func (i artifactImporter) Import(path string) (*types.Package, error) {
	if path == runtimePath {
		return i.rt, nil
	}
	return i.std.Import(path)
}

func newArtifactImporter(t *testing.T) artifactImporter {
	t.Helper()
	std := importer.Default()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "rt.go", runtimeSrc, 0)
	require.NoError(t, err)
	conf := types.Config{Importer: std}
	rt, err := conf.Check(runtimePath, fset, []*ast.File{f}, nil)
	require.NoError(t, err)
	return artifactImporter{std: std, rt: rt}
}

// selectArtifacts returns the Go files in dir that a build with tags includes.
func selectArtifacts(t *testing.T, dir string, tags ...string) []string {
	t.Helper()
	ctx := build.Default
	ctx.BuildTags = tags
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".go" {
			continue
		}
		ok, err := ctx.MatchFile(dir, e.Name())
		require.NoError(t, err)
		if ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// typeCheck checks paths as one package, the way go build would.
func typeCheck(t *testing.T, paths []string) error {
	t.Helper()
	require.NotEmpty(t, paths)
	fset := token.NewFileSet()
	files := make([]*ast.File, 0, len(paths))
	for _, p := range paths {
		f, err := parser.ParseFile(fset, p, nil, 0)
		require.NoError(t, err)
		files = append(files, f)
	}
	conf := types.Config{Importer: newArtifactImporter(t)}
	_, err := conf.Check("handler", fset, files, nil)
	return err
}

func generateArtifacts(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "api", "serverFn")
	_, err := New(out, WithRuntimeImport(runtimePath)).Generate(newRegistry(t))
	require.NoError(t, err)
	return out
}

func TestRuntimeStandInMatchesFn(t *testing.T) {
	assert.Equal(t, "func(http.ResponseWriter, *http.Request, string, fn.Func)", reflect.TypeOf(fn.Serve).String())

	ft := reflect.TypeOf(fn.Func(nil))
	require.Equal(t, 2, ft.NumIn())
	assert.Equal(t, "context.Context", ft.In(0).String())
	assert.Equal(t, "*fn.Call", ft.In(1).String())
	assert.Equal(t, 2, ft.NumOut())

	ct := reflect.TypeOf(fn.Call{})
	var fields []string
	for i := 0; i < ct.NumField(); i++ {
		fields = append(fields, ct.Field(i).Name)
	}
	assert.Equal(t, []string{"Method", "Path", "Query", "Header", "Body"}, fields)
}

func TestEachArtifactBuildsAlone(t *testing.T) {
	out := generateArtifacts(t)

	for _, name := range []string{"getUser", "boom"} {
		t.Run(name, func(t *testing.T) {
			selected := selectArtifacts(t, out, BuildTag(name))
			require.Equal(t, []string{filepath.Join(out, name+".go")}, selected)
			assert.NoError(t, typeCheck(t, selected))
		})
	}
}

func TestArtifactsAreExcludedFromUntaggedBuilds(t *testing.T) {
	out := generateArtifacts(t)
	assert.Empty(t, selectArtifacts(t, out))
}

func TestTypeCheckCatchesRedeclaredHandler(t *testing.T) {
	out := generateArtifacts(t)
	all, err := filepath.Glob(filepath.Join(out, "*.go"))
	require.NoError(t, err)
	require.Len(t, all, 2)

	err = typeCheck(t, all)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Handler redeclared")
}

func TestTypeCheckCatchesImportShadowing(t *testing.T) {
	// The registry refuses this name; build the entry directly to show the
	// generated file would not compile.
	f := &fn.Function{Name: "http", Source: fn.Source{Body: "\treturn nil, nil"}}
	out := t.TempDir()
	path, err := New(out, WithRuntimeImport(runtimePath)).File(f).Render(out)
	require.NoError(t, err)

	assert.Error(t, typeCheck(t, []string{path}))
}
