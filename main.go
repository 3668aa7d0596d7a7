package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jcorbin/tacitus/internal/logio"
)

// Exit codes, grounded in the teacher's main.go convention of distinct
// codes per failure class rather than a single "something went wrong".
const (
	exitOK          = 0
	exitRuntimeErr  = 1
	exitCompileErr  = 2
	exitUsageErr    = 3
)

var log logio.Logger

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tacitus", flag.ContinueOnError)
	evalStr := fs.String("eval", "", "evaluate STRING instead of (or before) reading any files")
	trace := fs.Bool("trace", false, "log each instruction's data stack before it executes")
	dump := fs.Bool("dump", false, "print the data stack after each source chunk")
	memLimit := fs.Int("mem-limit", 0, "abort a chunk after this many instructions (0: unbounded)")
	timeout := fs.Duration("timeout", 0, "abort a chunk after this long (0: unbounded)")
	if err := fs.Parse(args); err != nil {
		return exitUsageErr
	}

	log.SetOutput(writeNopCloser{os.Stderr})

	var opts []Option
	opts = append(opts, WithOutput(os.Stdout))
	if *memLimit > 0 {
		opts = append(opts, WithMaxSteps(*memLimit))
	}
	if *trace {
		opts = append(opts, WithTrace(func(vm *VM) {
			log.Printf("TRACE", "ip=%d %s", vm.ip, vm.Dump())
		}))
	}

	vm, err := New(opts...)
	if err != nil {
		log.Printf("ERROR", "failed to construct VM: %v", err)
		return exitUsageErr
	}

	files := fs.Args()
	if *evalStr == "" && len(files) == 0 {
		files = []string{"-"}
	}

	if *evalStr != "" {
		if code := evalChunk(vm, "-eval", *evalStr, *timeout, *dump); code != exitOK {
			return code
		}
	}

	for _, name := range files {
		if name == "-" {
			if code := runREPL(vm, *timeout, *dump); code != exitOK {
				return code
			}
			continue
		}
		src, err := os.ReadFile(name)
		if err != nil {
			log.Printf("ERROR", "%v", err)
			return exitUsageErr
		}
		if code := evalChunk(vm, name, string(src), *timeout, *dump); code != exitOK {
			return code
		}
	}
	return exitOK
}

func evalChunk(vm *VM, name, src string, timeout time.Duration, dump bool) int {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := vm.Eval(ctx, name, src); err != nil {
		return classifyError(err)
	}
	if dump {
		fmt.Println(vm.Dump())
	}
	return exitOK
}

func runREPL(vm *VM, timeout time.Duration, dump bool) int {
	sc := bufio.NewScanner(os.Stdin)
	line := 0
	for sc.Scan() {
		line++
		name := fmt.Sprintf("<stdin>:%d", line)
		if code := evalChunk(vm, name, sc.Text(), timeout, dump); code != exitOK {
			return code
		}
	}
	if err := sc.Err(); err != nil {
		log.Printf("ERROR", "%v", err)
		return exitUsageErr
	}
	return exitOK
}

func classifyError(err error) int {
	var rerr RuntimeError
	if errors.As(err, &rerr) {
		log.Printf("ERROR", "%v", rerr)
		return exitRuntimeErr
	}
	var perr ParseError
	var cerr CompileError
	if errors.As(err, &perr) || errors.As(err, &cerr) {
		log.Printf("ERROR", "%v", err)
		return exitCompileErr
	}
	log.Printf("ERROR", "%v", err)
	return exitRuntimeErr
}

type writeNopCloser struct{ *os.File }

func (writeNopCloser) Close() error { return nil }
