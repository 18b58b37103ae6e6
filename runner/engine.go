// Package runner contains the scheduling engine: it resolves test units and
// runs them sequentially or through worker pools at unit or method
// granularity, reporting every outcome to a Notifier.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-launcher/pool"
	"github.com/ethereum-optimism/infra/op-launcher/reporting"
	"github.com/ethereum-optimism/infra/op-launcher/types"
)

// PoolFactory creates the worker pool for one scheduling scope
type PoolFactory func(policy types.PoolPolicy, logger log.Logger) pool.WorkerPool

// Engine schedules test units according to a RunConfiguration.
type Engine struct {
	resolver Resolver
	log      log.Logger
	tracer   trace.Tracer
	newPool  PoolFactory
}

// NewEngine creates an engine resolving units through resolver
func NewEngine(resolver Resolver, logger log.Logger) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Engine{
		resolver: resolver,
		log:      logger.New("component", "engine"),
		tracer:   otel.Tracer("scheduling engine"),
		newPool:  pool.New,
	}, nil
}

// Resolve resolves every unit name in order. The first failure aborts with a
// UnitResolutionError.
func (e *Engine) Resolve(ctx context.Context, names []types.TestUnit) ([]Unit, error) {
	units := make([]Unit, 0, len(names))
	for _, name := range names {
		unit, err := e.resolver.Resolve(ctx, string(name))
		if err != nil {
			return nil, &UnitResolutionError{Kind: "unit", Name: string(name), Err: err}
		}
		units = append(units, unit)
	}
	return units, nil
}

// Run resolves names and executes them. Nothing runs if any unit fails to
// resolve.
func (e *Engine) Run(ctx context.Context, cfg types.RunConfiguration, names []types.TestUnit, sink *Notifier) (types.RunResult, error) {
	units, err := e.Resolve(ctx, names)
	if err != nil {
		return types.RunResult{}, err
	}
	return e.Execute(ctx, cfg, units, sink)
}

// Execute runs resolved units according to cfg.ParallelMode. The result is
// only returned once every submitted task has finished; if the wait is
// interrupted the invocation fails instead of returning partial counts.
func (e *Engine) Execute(ctx context.Context, cfg types.RunConfiguration, units []Unit, sink *Notifier) (types.RunResult, error) {
	ctx, span := e.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("parallel_mode", cfg.ParallelMode.String()),
		attribute.String("pool", cfg.Pool.String()),
		attribute.Int("units", len(units)),
	))
	defer span.End()

	agg := reporting.NewAggregator()
	notifier := sink.With(agg)

	names := make([]types.TestUnit, len(units))
	for i, u := range units {
		names[i] = types.TestUnit(u.Name())
	}

	e.log.Info("Starting test run", "units", len(units), "parallelMode", cfg.ParallelMode, "pool", cfg.Pool)
	start := time.Now()
	notifier.RunStarted(names)

	var err error
	switch cfg.ParallelMode {
	case types.ParallelClasses:
		err = e.runClasses(ctx, cfg.Pool, units, notifier)
	case types.ParallelMethods:
		err = e.runMethods(ctx, cfg.Pool, units, notifier)
	default:
		for _, u := range units {
			e.runUnit(ctx, u, notifier)
		}
	}
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("test run interrupted: %w", ctx.Err())
	}
	if err != nil {
		span.RecordError(err)
		return types.RunResult{}, err
	}

	result := agg.Result(time.Since(start))
	notifier.RunFinished(result)
	e.log.Info("Test run completed",
		"run", result.RunCount,
		"failures", result.FailureCount,
		"ignored", result.IgnoreCount,
		"elapsed", time.Duration(result.ElapsedMillis)*time.Millisecond)
	return result, nil
}

// runClasses submits every unit as one task to a single pool and drains it
// once. Methods inside a unit stay sequential.
func (e *Engine) runClasses(ctx context.Context, policy types.PoolPolicy, units []Unit, sink *Notifier) error {
	return e.withPool(ctx, policy, func(p pool.WorkerPool) error {
		for _, u := range units {
			u := u
			if err := p.Submit(func() { e.runUnit(ctx, u, sink) }); err != nil {
				return fmt.Errorf("submitting unit %s: %w", u.Name(), err)
			}
		}
		return nil
	})
}

// runMethods runs units one at a time, each with a fresh pool running its
// methods concurrently.
func (e *Engine) runMethods(ctx context.Context, policy types.PoolPolicy, units []Unit, sink *Notifier) error {
	for _, u := range units {
		u := u
		ctx, span := e.tracer.Start(ctx, fmt.Sprintf("unit %s", u.Name()))
		err := e.withPool(ctx, policy, func(p pool.WorkerPool) error {
			for _, m := range u.Methods() {
				m := m
				if err := p.Submit(func() { e.runMethod(ctx, u, m, sink) }); err != nil {
					return fmt.Errorf("submitting %s::%s: %w", u.Name(), m, err)
				}
			}
			return nil
		})
		span.End()
		if err != nil {
			return err
		}
	}
	return nil
}

// withPool pairs pool creation with its drain on every exit path.
func (e *Engine) withPool(ctx context.Context, policy types.PoolPolicy, fn func(p pool.WorkerPool) error) error {
	p := e.newPool(policy, e.log)
	defer p.AwaitDrain(ctx)
	return fn(p)
}

func (e *Engine) runUnit(ctx context.Context, u Unit, sink *Notifier) {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("unit %s", u.Name()))
	defer span.End()

	e.log.Debug("Running unit", "unit", u.Name())
	for _, m := range u.Methods() {
		e.runMethod(ctx, u, m, sink)
	}
}

func (e *Engine) runMethod(ctx context.Context, u Unit, method string, sink *Notifier) {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("test %s", method))
	defer span.End()

	sink.TestStarted(u.Name(), method)
	start := time.Now()
	outcome := e.invoke(ctx, u, method)
	event := types.TestEvent{
		Unit:     u.Name(),
		Method:   method,
		Status:   outcome.Status,
		Error:    outcome.Err,
		Duration: time.Since(start),
	}
	span.SetAttributes(attribute.String("status", string(event.Status)))
	sink.TestFinished(event)
}

// invoke runs a method, turning a panic into a failed outcome.
func (e *Engine) invoke(ctx context.Context, u Unit, method string) (outcome MethodOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Panic in test method", "unit", u.Name(), "method", method, "panic", r)
			outcome = MethodOutcome{Status: types.TestStatusFail, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	outcome = u.RunMethod(ctx, method)
	switch outcome.Status {
	case types.TestStatusPass, types.TestStatusFail, types.TestStatusIgnore:
	default:
		if outcome.Err != nil {
			outcome.Status = types.TestStatusFail
		} else {
			outcome.Status = types.TestStatusPass
		}
	}
	return outcome
}
