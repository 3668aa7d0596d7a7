package main

import (
	"io"

	"github.com/jcorbin/tacitus/internal/flushio"
	"github.com/jcorbin/tacitus/internal/segment"
)

// options collects VM construction settings, grounded in the teacher's
// api.go/options.go functional-options pattern (the retrieved snapshot
// carried two overlapping generations of that machinery under the same
// names; this merges them into one, see DESIGN.md).
type options struct {
	sizes    segment.Sizes
	out      flushio.WriteFlusher
	maxSteps int
	trace    func(vm *VM)
}

// Option configures a VM at construction time.
type Option func(*options)

func defaultOptions() options {
	return options{
		sizes: segment.Sizes{
			Stack:  4096,
			RStack: 4096,
			Code:   32768,
			String: 16384,
			Global: 16384,
		},
		out: flushio.NewWriteFlusher(io.Discard),
	}
}

// WithSizes overrides one or more segment sizes; zero fields keep the
// default for that segment.
func WithSizes(sizes segment.Sizes) Option {
	return func(o *options) {
		if sizes.Stack != 0 {
			o.sizes.Stack = sizes.Stack
		}
		if sizes.RStack != 0 {
			o.sizes.RStack = sizes.RStack
		}
		if sizes.Code != 0 {
			o.sizes.Code = sizes.Code
		}
		if sizes.String != 0 {
			o.sizes.String = sizes.String
		}
		if sizes.Global != 0 {
			o.sizes.Global = sizes.Global
		}
	}
}

// WithOutput sets the writer print/raw-print/dot write to.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = flushio.NewWriteFlusher(w) }
}

// WithMaxSteps caps the number of instructions a single Eval call may
// execute before it fails with StepLimitError; zero (the default) means
// unbounded.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithTrace installs a callback invoked before every instruction, for a
// -trace CLI flag or test instrumentation.
func WithTrace(fn func(vm *VM)) Option {
	return func(o *options) { o.trace = fn }
}
