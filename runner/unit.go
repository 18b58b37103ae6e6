package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// ErrUnitNotFound is returned by a Resolver that does not know a name.
var ErrUnitNotFound = errors.New("unit not found")

// MethodOutcome is the result of running one test method. Test failures are
// outcomes, never errors returned by the engine.
type MethodOutcome struct {
	Status types.TestStatus
	Err    error
}

// Unit is a resolved, executable test unit: an ordered list of test methods.
type Unit interface {
	Name() string
	// Methods returns the unit's test methods in declaration order.
	Methods() []string
	// RunMethod runs a single method and reports its outcome.
	RunMethod(ctx context.Context, method string) MethodOutcome
}

// Resolver locates a test unit by its canonical name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Unit, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, name string) (Unit, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) (Unit, error) {
	return f(ctx, name)
}

// MultiResolver tries each resolver in order. A resolver answering
// ErrUnitNotFound passes the name on to the next one; any other error stops
// the search.
type MultiResolver []Resolver

func (m MultiResolver) Resolve(ctx context.Context, name string) (Unit, error) {
	for _, r := range m {
		unit, err := r.Resolve(ctx, name)
		if err == nil {
			return unit, nil
		}
		if !errors.Is(err, ErrUnitNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
}
