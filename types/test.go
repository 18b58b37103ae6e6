package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible outcomes of a single test method
type TestStatus string

const (
	TestStatusPass   TestStatus = "pass"
	TestStatusFail   TestStatus = "fail"
	TestStatusIgnore TestStatus = "ignore"
)

// TestUnit is the canonical name of an executable group of test methods.
type TestUnit string

// TestEvent is delivered to listeners whenever a test method finishes
type TestEvent struct {
	Unit     string
	Method   string
	Status   TestStatus
	Error    error
	Duration time.Duration
}

// TestKey returns the unit::method key used in logs and metrics labels
func (e TestEvent) TestKey() string {
	if e.Method == "" {
		return e.Unit
	}
	return fmt.Sprintf("%s::%s", e.Unit, e.Method)
}

// RunResult captures the counted outcome of one process invocation.
// RunCount counts executed methods (passed and failed); ignored methods only
// contribute to IgnoreCount.
type RunResult struct {
	RunCount      int
	FailureCount  int
	IgnoreCount   int
	ElapsedMillis int64
}

// WasSuccessful reports whether no method failed
func (r RunResult) WasSuccessful() bool {
	return r.FailureCount == 0
}

// Add returns the element-wise sum of two results
func (r RunResult) Add(other RunResult) RunResult {
	return RunResult{
		RunCount:      r.RunCount + other.RunCount,
		FailureCount:  r.FailureCount + other.FailureCount,
		IgnoreCount:   r.IgnoreCount + other.IgnoreCount,
		ElapsedMillis: r.ElapsedMillis + other.ElapsedMillis,
	}
}

// ParseUnits splits a comma separated list of unit names, trimming blanks and
// keeping declaration order. Duplicate names are rejected.
func ParseUnits(list string) ([]TestUnit, error) {
	var units []TestUnit
	seen := make(map[TestUnit]bool)
	for _, part := range strings.Split(list, ",") {
		name := TestUnit(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate test unit %q", name)
		}
		seen[name] = true
		units = append(units, name)
	}
	return units, nil
}

// JoinUnits is the inverse of ParseUnits
func JoinUnits(units []TestUnit) string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = string(u)
	}
	return strings.Join(names, ",")
}
