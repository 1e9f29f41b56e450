// Package testutil provides test helpers that keep the package layering
// honest: domain vocabulary at the bottom, entity and project state above it,
// policies and the engine on top.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "stageplan/"

// AssertNoDirectImports parses every non-test .go file in dir and fails if
// any import path satisfies forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfDirectViolations(t, reason, viols)
}

// AssertNoTransitiveImports loads the packages matching pattern with their
// full dependency graph and fails if any package reachable from them (the
// roots included) satisfies forbidden.
func AssertNoTransitiveImports(t testing.TB, pattern string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("load %s: package errors", pattern)
	}
	failIfTransitiveViolations(t, reason, transitiveViolations(pkgs, forbidden))
}

// transitiveViolations reports each forbidden package once, with the
// importer that pulled it in.
func transitiveViolations(roots []*packages.Package, forbidden func(importPath string) bool) []string {
	seen := make(map[string]struct{})
	packages.Visit(roots, func(pkg *packages.Package) bool {
		for path := range pkg.Imports {
			if forbidden(path) {
				seen[path+" (via "+pkg.PkgPath+")"] = struct{}{}
			}
		}
		return true
	}, nil)
	viols := make([]string, 0, len(seen))
	for v := range seen {
		viols = append(viols, v)
	}
	sort.Strings(viols)
	return viols
}

func failIfTransitiveViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden transitive imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// InternalImportForbidden matches any module package under internal/.
func InternalImportForbidden(path string) bool {
	return strings.HasPrefix(path, modulePath) && strings.Contains(path, "/internal/")
}

// ImportsAny returns a predicate matching the given module-relative
// packages, e.g. "internal/core".
func ImportsAny(pkgs ...string) func(string) bool {
	set := make(map[string]struct{}, len(pkgs))
	for _, p := range pkgs {
		set[modulePath+strings.Trim(p, "/")] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[path]
		return ok
	}
}

// ThirdPartyForbidden matches any import outside the standard library and
// this module.
func ThirdPartyForbidden(path string) bool {
	if strings.HasPrefix(path, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfDirectViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden direct imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
