// pkg/codegen/generator.go
package codegen

import (
	"fmt"
	"os"

	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	goacodegen "goa.design/goa/v3/codegen"
)

const (
	DefaultOutDir  = "api/serverFn"
	DefaultPackage = "handler"
)

// Generator writes one standalone handler file per registered function.
type Generator struct {
	outDir        string
	pkg           string
	runtimeImport string
	log           *zap.Logger
}

type Option func(*Generator)

func WithPackage(name string) Option { return func(g *Generator) { g.pkg = name } }

// WithRuntimeImport overrides the import path of the fn package in generated files.
func WithRuntimeImport(path string) Option { return func(g *Generator) { g.runtimeImport = path } }

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

func New(outDir string, opts ...Option) *Generator {
	g := &Generator{
		outDir:        outDir,
		pkg:           DefaultPackage,
		runtimeImport: fn.ImportPath,
		log:           zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.outDir == "" {
		g.outDir = DefaultOutDir
	}
	return g
}

func (g *Generator) OutDir() string { return g.outDir }

// Result lists what a generation pass wrote and what it could not.
type Result struct {
	Written []string
	Failed  []string
}

// Generate rewrites every artifact for every registered function. A failure
// skips that function only; all failures are returned together.
func (g *Generator) Generate(reg *fn.Registry) (Result, error) {
	var res Result
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return res, fmt.Errorf("codegen: create %s: %w", g.outDir, err)
	}

	var errs error
	for _, name := range reg.Names() {
		f, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		path, err := g.File(f).Render(g.outDir)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("codegen: %s: %w", name, err))
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Written = append(res.Written, path)
	}

	log := g.log.With(zap.String("dir", g.outDir), zap.Int("written", len(res.Written)))
	if errs != nil {
		log.Error("server function generation incomplete", zap.Strings("failed", res.Failed), zap.Error(errs))
	} else {
		log.Info("server functions generated")
	}
	return res, errs
}

// BuildTag is the build constraint that selects the artifact of one function.
// Every artifact declares Handler, so an output directory builds one function
// at a time: go build -tags serverfn.<name>.
func BuildTag(name string) string { return "serverfn." + name }

// File builds the artifact for a single function. Its path is relative to
// the output directory.
func (g *Generator) File(f *fn.Function) *goacodegen.File {
	imports := []*goacodegen.ImportSpec{
		{Path: "context"},
		{Path: "net/http"},
		{Name: fn.RuntimeAlias, Path: g.runtimeImport},
	}
	for _, im := range f.Source.Imports {
		imports = appendImport(imports, &goacodegen.ImportSpec{Name: im.Name, Path: im.Path})
	}

	header := goacodegen.Header(f.Name+" server function handler", g.pkg, imports)
	header.Source = "//go:build " + BuildTag(f.Name) + "\n\n" + header.Source

	sections := []*goacodegen.SectionTemplate{
		header,
		{
			Name:   "serverfn-handler",
			Source: handlerT,
			Data: handlerData{
				Name:    f.Name,
				Ctx:     f.Source.CtxParam(),
				Call:    f.Source.CallParam(),
				Body:    f.Source.Body,
				Runtime: fn.RuntimeAlias,
			},
		},
	}
	return &goacodegen.File{
		Path:             f.Name + ".go",
		SectionTemplates: sections,
	}
}

func appendImport(imports []*goacodegen.ImportSpec, im *goacodegen.ImportSpec) []*goacodegen.ImportSpec {
	for _, have := range imports {
		if have.Path == im.Path && have.Name == im.Name {
			return imports
		}
	}
	return append(imports, im)
}
