// Package inventory loads the YAML file that lists the units to run.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// Entry is a single unit reference. In YAML it is either a plain string or a
// mapping with a name key.
type Entry struct {
	Name string `yaml:"name"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Inventory is the parsed inventory file.
type Inventory struct {
	Tests []Entry `yaml:"tests"`
	// Batch holds glob patterns, relative to the base directory, selecting
	// directories that contain Go test files.
	Batch     []string          `yaml:"batch"`
	Listeners []string          `yaml:"listeners"`
	Env       map[string]string `yaml:"env"`
}

// Load reads and parses an inventory file
func Load(path string) (*Inventory, error) {
	log.Debug("Reading inventory file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory file: %w", err)
	}
	return Parse(data)
}

// Parse parses inventory YAML
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parsing inventory file: %w", err)
	}
	return &inv, nil
}

// Units returns the declared units followed by the batch matches, in
// declaration order. Names are trimmed, blanks dropped and duplicates
// rejected. Batch matches are sorted per pattern.
func (inv *Inventory) Units(baseDir string) ([]types.TestUnit, error) {
	var units []types.TestUnit
	seen := make(map[types.TestUnit]bool)
	add := func(name string) error {
		unit := types.TestUnit(strings.TrimSpace(name))
		if unit == "" {
			return nil
		}
		if seen[unit] {
			return fmt.Errorf("duplicate test unit %q", unit)
		}
		seen[unit] = true
		units = append(units, unit)
		return nil
	}

	for _, e := range inv.Tests {
		if err := add(e.Name); err != nil {
			return nil, err
		}
	}
	for _, pattern := range inv.Batch {
		dirs, err := matchTestDirs(baseDir, pattern)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if err := add(dir); err != nil {
				return nil, err
			}
		}
	}
	return units, nil
}

// Environ returns the extra child environment as sorted KEY=VALUE pairs
func (inv *Inventory) Environ() []string {
	env := make([]string, 0, len(inv.Env))
	for k, v := range inv.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// matchTestDirs expands pattern under baseDir and keeps directories holding
// at least one _test.go file, returned as ./relative package paths.
func matchTestDirs(baseDir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(baseDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid batch pattern %q: %w", pattern, err)
	}

	var dirs []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		tests, err := filepath.Glob(filepath.Join(m, "*_test.go"))
		if err != nil || len(tests) == 0 {
			continue
		}
		rel, err := filepath.Rel(baseDir, m)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, "./"+filepath.ToSlash(rel))
	}
	sort.Strings(dirs)
	return dirs, nil
}
