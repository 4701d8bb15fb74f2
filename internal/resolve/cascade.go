// Package resolve implements the cascading resolution pipeline: six stages
// (identify, locate, price, tariff, tax, image), each trying an ordered list
// of source adapters and degrading to a sentinel default when every source
// is absent or failing.
package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Outcome tags the result of a single adapter attempt.
type Outcome int

const (
	// OutcomeAbsent means the source answered but had no applicable value.
	// The cascade moves on silently.
	OutcomeAbsent Outcome = iota
	// OutcomeResolved means the source produced a value.
	OutcomeResolved
	// OutcomeFailed means the source errored. The cascade moves on, but the
	// failure is logged and distinguishable in diagnostics.
	OutcomeFailed
)

// Resolution is the tagged outcome of one adapter or one whole cascade.
type Resolution[T any] struct {
	Outcome Outcome
	Value   T
	Source  string
	Err     error
}

// Resolved builds a successful resolution attributed to source.
func Resolved[T any](source string, value T) Resolution[T] {
	return Resolution[T]{Outcome: OutcomeResolved, Source: source, Value: value}
}

// Absent builds a no-value resolution.
func Absent[T any]() Resolution[T] {
	return Resolution[T]{Outcome: OutcomeAbsent}
}

// Failed builds an errored resolution attributed to source.
func Failed[T any](source string, err error) Resolution[T] {
	return Resolution[T]{Outcome: OutcomeFailed, Source: source, Err: err}
}

// Adapter is a single data-source integration with a uniform resolve
// operation. Adapters must catch their own errors and report them through
// the Resolution; nothing an adapter does may escape the cascade.
type Adapter[T any] interface {
	Name() string
	Resolve(ctx context.Context) Resolution[T]
}

// AdapterFunc adapts a closure into an Adapter.
type AdapterFunc[T any] struct {
	AdapterName string
	Fn          func(ctx context.Context) Resolution[T]
}

// Name implements Adapter.
func (a AdapterFunc[T]) Name() string { return a.AdapterName }

// Resolve implements Adapter.
func (a AdapterFunc[T]) Resolve(ctx context.Context) Resolution[T] { return a.Fn(ctx) }

// DefaultSource is the Source recorded when a cascade falls through to its
// terminal default.
const DefaultSource = "default"

// Cascade is an ordered adapter list plus a terminal default. The order is
// data, not control flow: adapters run sequentially, first success wins, and
// the cascade never raises past its default.
type Cascade[T any] struct {
	Stage    string
	Adapters []Adapter[T]
	Default  T
	// Timeout bounds each adapter attempt. Zero means no per-adapter bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Run tries each adapter in order and returns the first resolved value, or
// the terminal default when every adapter is absent or failing. Cancellation
// of ctx stops the cascade early, still yielding the default.
func (c Cascade[T]) Run(ctx context.Context) Resolution[T] {
	for _, a := range c.Adapters {
		if ctx.Err() != nil {
			break
		}

		actx := ctx
		cancel := func() {}
		if c.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, c.Timeout)
		}
		res := a.Resolve(actx)
		cancel()

		switch res.Outcome {
		case OutcomeResolved:
			zap.L().Debug("cascade: resolved",
				zap.String("stage", c.Stage),
				zap.String("source", a.Name()),
			)
			return res
		case OutcomeFailed:
			zap.L().Warn("cascade: adapter failed, trying next",
				zap.String("stage", c.Stage),
				zap.String("source", a.Name()),
				zap.Error(res.Err),
			)
		}
	}

	return Resolution[T]{Outcome: OutcomeResolved, Source: DefaultSource, Value: c.Default}
}
