package gotest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// PackageDir maps a package path onto its directory below workingDir. Paths
// starting with ./ are taken as relative; anything else must belong to the
// module declared in workingDir/go.mod.
func PackageDir(pkgPath string, workingDir string) (string, error) {
	if pkgPath == "." || strings.HasPrefix(pkgPath, "./") {
		return filepath.Join(workingDir, strings.TrimPrefix(pkgPath, "./")), nil
	}

	goModPath := filepath.Join(workingDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}

	moduleName := modFile.Module.Mod.Path
	if pkgPath != moduleName && !strings.HasPrefix(pkgPath, moduleName+"/") {
		return "", fmt.Errorf("%w: package %s is not in module %s", errOutsideModule, pkgPath, moduleName)
	}
	return filepath.Join(workingDir, strings.TrimPrefix(pkgPath, moduleName)), nil
}

// FindTestFunctions returns the top-level Test functions declared in the
// package's _test.go files, in file then declaration order. TestMain is
// excluded.
func FindTestFunctions(pkgDir string) ([]string, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var testFunctions []string
	fset := token.NewFileSet()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		f, err := parser.ParseFile(fset, filepath.Join(pkgDir, entry.Name()), nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || funcDecl.Recv != nil {
				continue
			}
			if isTestName(funcDecl.Name.Name) {
				testFunctions = append(testFunctions, funcDecl.Name.Name)
			}
		}
	}

	return testFunctions, nil
}

// isTestName follows the go test rule: Test, optionally followed by a name
// that does not start with a lower-case letter.
func isTestName(name string) bool {
	if name == "TestMain" || !strings.HasPrefix(name, "Test") {
		return false
	}
	rest := name[len("Test"):]
	return rest == "" || !(rest[0] >= 'a' && rest[0] <= 'z')
}
