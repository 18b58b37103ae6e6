// Package types contains the value types shared by the scheduling engine,
// the orchestrator and the child launchers.
package types

import (
	"fmt"
	"strings"
	"time"
)

// ParallelMode selects the granularity of in-process parallelism
type ParallelMode string

// String implements the Stringer interface for ParallelMode
func (m ParallelMode) String() string {
	return string(m)
}

const (
	ParallelNone    ParallelMode = "none"
	ParallelClasses ParallelMode = "classes"
	ParallelMethods ParallelMode = "methods"
)

// ParseParallelMode maps a payload value onto a ParallelMode. Anything
// unrecognized runs sequentially.
func ParseParallelMode(s string) ParallelMode {
	switch ParallelMode(strings.ToLower(strings.TrimSpace(s))) {
	case ParallelClasses:
		return ParallelClasses
	case ParallelMethods:
		return ParallelMethods
	default:
		return ParallelNone
	}
}

// PoolKind names a worker pool policy
type PoolKind string

const (
	PoolCached   PoolKind = "cached"
	PoolFixed    PoolKind = "fixed"
	PoolSingle   PoolKind = "single"
	PoolForkJoin PoolKind = "forkjoin"
	PoolDefault  PoolKind = "default"
)

// ParsePoolKind maps a payload value onto a PoolKind. Unrecognized values
// fall back to PoolDefault and are never an error.
func ParsePoolKind(s string) PoolKind {
	switch k := PoolKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PoolCached, PoolFixed, PoolSingle, PoolForkJoin:
		return k
	default:
		return PoolDefault
	}
}

// PoolPolicy is the tagged pool variant selected by configuration.
type PoolPolicy struct {
	Kind    PoolKind
	Threads int
}

// EffectiveThreads is the configured thread count clamped to at least 1
func (p PoolPolicy) EffectiveThreads() int {
	if p.Threads < 1 {
		return 1
	}
	return p.Threads
}

func (p PoolPolicy) String() string {
	switch p.Kind {
	case PoolFixed, PoolForkJoin:
		return fmt.Sprintf("%s(%d)", p.Kind, p.EffectiveThreads())
	case "":
		return string(PoolDefault)
	default:
		return string(p.Kind)
	}
}

// IsolationMode selects how the orchestrator maps units onto processes
type IsolationMode string

const (
	IsolationBatch      IsolationMode = "batch"
	IsolationSequential IsolationMode = "sequential"
)

// IsValid checks if the isolation mode is one of the known modes
func (m IsolationMode) IsValid() bool {
	return m == IsolationBatch || m == IsolationSequential
}

// RunConfiguration is built once before execution and never mutated during
// it. It is passed by value into the engine and the orchestrator.
type RunConfiguration struct {
	ParallelMode ParallelMode
	Pool         PoolPolicy
	// PoolSet records whether the pool policy was configured explicitly, so
	// the payload only carries pool keys that were given.
	PoolSet       bool
	Isolation     IsolationMode
	Listeners     []string
	PrintSummary  bool
	FailOnError   bool
	HaltOnFailure bool
	Timeout       time.Duration
}

// Sequential returns a copy of the configuration that runs without any
// worker pool.
func (c RunConfiguration) Sequential() RunConfiguration {
	c.ParallelMode = ParallelNone
	c.Listeners = append([]string(nil), c.Listeners...)
	return c
}
