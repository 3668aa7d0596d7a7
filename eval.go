package main

import (
	"context"

	"github.com/jcorbin/tacitus/internal/panicerr"
)

// Eval compiles one chunk of source and runs it to completion, isolating
// any panic raised along the way (stack/memory corruption bugs, a bad
// index slipping past a check) into an ordinary RuntimeError, grounded in
// the teacher's isolate()/panicerr.Recover idiom (internal/panicerr).
func (vm *VM) Eval(ctx context.Context, name, src string) error {
	start, end, err := newCompiler(vm).Compile(name, src)
	if err != nil {
		return err
	}
	if start == end {
		return nil
	}
	err = panicerr.Recover(name, func() error {
		vm.ip = start
		if err := vm.runUntil(ctx, end); err != nil {
			return RuntimeError{Err: err, Stack: vm.DataStackSnapshot(), Context: name}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if _, ok := err.(RuntimeError); ok {
		return err
	}
	return RuntimeError{Err: err, Stack: vm.DataStackSnapshot(), Context: name}
}
