package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// ErrIgnored marks a test method as ignored when returned (or wrapped) by a
// TestFunc.
var ErrIgnored = errors.New("test ignored")

// TestFunc is the body of an in-process test method. A nil return passes,
// ErrIgnored ignores, anything else fails.
type TestFunc func(ctx context.Context) error

// Method is a named in-process test method
type Method struct {
	Name   string
	Fn     TestFunc
	Ignore bool
}

// Catalog is an in-process registry of test units, resolved by name.
type Catalog struct {
	mu    sync.RWMutex
	units map[string]*catalogUnit
}

// DefaultCatalog holds units registered through Register. Binaries that
// embed their own test units register them here from init functions.
var DefaultCatalog = NewCatalog()

// Register adds a unit to DefaultCatalog
func Register(name string, methods ...Method) error {
	return DefaultCatalog.Register(name, methods...)
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{units: make(map[string]*catalogUnit)}
}

// Register adds a unit with its methods in declaration order.
func (c *Catalog) Register(name string, methods ...Method) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("unit name cannot be empty")
	}

	seen := make(map[string]bool, len(methods))
	byName := make(map[string]Method, len(methods))
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		if m.Name == "" {
			return fmt.Errorf("unit %s: method name cannot be empty", name)
		}
		if seen[m.Name] {
			return fmt.Errorf("unit %s: duplicate method %s", name, m.Name)
		}
		if m.Fn == nil && !m.Ignore {
			return fmt.Errorf("unit %s: method %s has no body", name, m.Name)
		}
		seen[m.Name] = true
		byName[m.Name] = m
		names = append(names, m.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.units[name]; exists {
		return fmt.Errorf("unit %s already registered", name)
	}
	c.units[name] = &catalogUnit{name: name, order: names, methods: byName}
	return nil
}

// MustRegister is like Register but panics on error
func (c *Catalog) MustRegister(name string, methods ...Method) {
	if err := c.Register(name, methods...); err != nil {
		panic(err)
	}
}

// Resolve implements Resolver.
func (c *Catalog) Resolve(_ context.Context, name string) (Unit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	unit, ok := c.units[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
	}
	return unit, nil
}

type catalogUnit struct {
	name    string
	order   []string
	methods map[string]Method
}

func (u *catalogUnit) Name() string { return u.name }

func (u *catalogUnit) Methods() []string {
	return append([]string(nil), u.order...)
}

func (u *catalogUnit) RunMethod(ctx context.Context, method string) MethodOutcome {
	m, ok := u.methods[method]
	if !ok {
		return MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("no method %s in unit %s", method, u.name)}
	}
	if m.Ignore {
		return MethodOutcome{Status: types.TestStatusIgnore}
	}

	err := m.Fn(ctx)
	switch {
	case err == nil:
		return MethodOutcome{Status: types.TestStatusPass}
	case errors.Is(err, ErrIgnored):
		return MethodOutcome{Status: types.TestStatusIgnore}
	default:
		return MethodOutcome{Status: types.TestStatusFail, Err: err}
	}
}
