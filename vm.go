package main

import (
	"context"

	"github.com/jcorbin/tacitus/internal/flushio"
	"github.com/jcorbin/tacitus/internal/segment"
)

// cellSize is the width in bytes of every stack/return-stack/code cell.
const cellSize = 4

// frameHeaderCells is the number of RSTACK cells a call frame's prologue
// pushes before reserving local slots: the return address (pushed by the
// call site) and the saved base pointer (pushed by the prologue itself).
const frameHeaderCells = 2

// noFrame marks an RSTACK base pointer with no enclosing caller, i.e. the
// outermost frame of a top-level Eval.
const noFrame = 0xFFFFFFFF

// VM is the bytecode interpreter core (spec §3 "VM core", §4.5). It owns the
// segmented memory, the string digest, the symbol dictionary, and the
// runtime registers (IP/SP/RP/BP), and drives the byte-oriented
// fetch/decode/dispatch loop.
//
// Grounded in the teacher's internals.go step/exec/run dispatch idiom
// (one-word-per-cell int stream, lookup-then-switch), reworked to the
// spec's byte-oriented instruction format: a top-bit-clear byte selects one
// of 128 built-in opcodes, a top-bit-set byte pair is a 15-bit call address.
type VM struct {
	mem    *segment.Memory
	digest *digest
	dict   *dict

	sp uint32 // next free offset in STACK (bytes, grows up)
	rp uint32 // next free offset in RSTACK (bytes, grows up)
	bp uint32 // current frame's local-slot base, or noFrame
	ip uint32 // next instruction offset in CODE

	codeEnd uint32 // next free offset in CODE (the compiler's write cursor)

	running bool

	out       flushio.WriteFlusher
	hashIndex []*hashIndex // opaque handles returned by hindex, referenced by small integer id

	opt options
}

// handlers is the dispatch table for every opcode 0-127, populated by
// init() in vm.go (internal instructions) and builtins.go (named words).
var handlers [128]func(vm *VM) error

// New constructs a VM with the given configuration.
func New(opts ...Option) (*VM, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	mem := segment.New(o.sizes)
	dg := newDigest(mem)
	vm := &VM{
		mem:    mem,
		digest: dg,
		dict:   newDict(mem, dg),
		bp:     noFrame,
		out:    o.out,
		opt:    o,
	}
	if err := installBuiltins(vm.dict); err != nil {
		return nil, err
	}
	return vm, nil
}

// Dict exposes the symbol dictionary, e.g. for a REPL's word-completion or
// the dumper's address-to-name rendering.
func (vm *VM) Dict() *dict { return vm.dict }

// Digest exposes the string digest for rendering STRING cells.
func (vm *VM) Digest() *digest { return vm.digest }

// SP reports the current data-stack depth in cells, for tests and dumps.
func (vm *VM) SP() uint32 { return vm.sp / cellSize }

func (vm *VM) pushData(c Cell) error {
	if vm.sp+cellSize > vm.mem.Size(segment.Stack) {
		return StackOverflowError{Segment: SegStack, Op: "push"}
	}
	if err := vm.mem.WriteCell(segment.Stack, vm.sp, uint32(c)); err != nil {
		return err
	}
	vm.sp += cellSize
	return nil
}

func (vm *VM) popData() (Cell, error) {
	if vm.sp < cellSize {
		return 0, StackUnderflowError{Segment: SegStack, Op: "pop", Need: 1, Have: 0}
	}
	vm.sp -= cellSize
	v, err := vm.mem.ReadCell(segment.Stack, vm.sp)
	return Cell(v), err
}

// peekData reads the cell n deep from the top without popping (0 is top).
func (vm *VM) peekData(n uint32) (Cell, error) {
	need := (n + 1) * cellSize
	if vm.sp < need {
		return 0, StackUnderflowError{Segment: SegStack, Op: "peek", Need: int(n) + 1, Have: int(vm.sp / cellSize)}
	}
	v, err := vm.mem.ReadCell(segment.Stack, vm.sp-need)
	return Cell(v), err
}

func (vm *VM) requireData(n uint32) error {
	if vm.sp < n*cellSize {
		return StackUnderflowError{Segment: SegStack, Need: int(n), Have: int(vm.sp / cellSize)}
	}
	return nil
}

func (vm *VM) pushR(v uint32) error {
	if vm.rp+cellSize > vm.mem.Size(segment.RStack) {
		return StackOverflowError{Segment: SegRStack, Op: "push"}
	}
	if err := vm.mem.WriteCell(segment.RStack, vm.rp, v); err != nil {
		return err
	}
	vm.rp += cellSize
	return nil
}

func (vm *VM) popR() (uint32, error) {
	if vm.rp < cellSize {
		return 0, StackUnderflowError{Segment: SegRStack, Op: "pop", Need: 1, Have: 0}
	}
	vm.rp -= cellSize
	return vm.mem.ReadCell(segment.RStack, vm.rp)
}

func (vm *VM) fetchByte() (byte, error) {
	b, err := vm.mem.ReadByte(segment.Code, vm.ip)
	if err != nil {
		return 0, err
	}
	vm.ip++
	return b, nil
}

func (vm *VM) fetchI16() (int16, error) {
	u, err := vm.mem.ReadU16(segment.Code, vm.ip)
	if err != nil {
		return 0, err
	}
	vm.ip += 2
	return int16(u), nil
}

func (vm *VM) fetchCell() (Cell, error) {
	v, err := vm.mem.ReadCell(segment.Code, vm.ip)
	if err != nil {
		return 0, err
	}
	vm.ip += 4
	return Cell(v), nil
}

// localAddr returns the RSTACK offset of local slot idx in the current
// frame. Slot 0 sits at bp, slot k at bp+4k (spec §4.5 "Local access").
func (vm *VM) localAddr(idx uint16) uint32 { return vm.bp + uint32(idx)*cellSize }

// call performs the shared call protocol for both a direct 2-byte
// instruction-encoded call and an `eval` of a CODE value: push the return
// address, jump to addr. The target's first byte is always opPrologue,
// emitted uniformly by the compiler for every colon-definition and
// quotation body (spec §3 "Call frame").
func (vm *VM) call(addr uint32) error {
	if err := vm.pushR(vm.ip); err != nil {
		return err
	}
	vm.ip = addr
	return nil
}

// doPrologue implements opPrologue: save the caller's bp, adopt a new frame
// base, and zero-initialize n local slots to NIL.
func (vm *VM) doPrologue(n byte) error {
	if err := vm.pushR(vm.bp); err != nil {
		return err
	}
	vm.bp = vm.rp
	for i := byte(0); i < n; i++ {
		if err := vm.pushR(uint32(Nil)); err != nil {
			return err
		}
	}
	return nil
}

// doExit implements opExit: discard locals, restore the caller's bp, pop
// the return address into ip. If there is no return address (the outermost
// frame of a top-level Eval returned), the VM halts.
func (vm *VM) doExit() error {
	vm.rp = vm.bp
	oldBP, err := vm.popR()
	if err != nil {
		vm.running = false
		return nil
	}
	vm.bp = oldBP
	retAddr, err := vm.popR()
	if err != nil {
		vm.running = false
		return nil
	}
	vm.ip = retAddr
	return nil
}

func init() {
	handlers[opPushLiteral] = func(vm *VM) error {
		c, err := vm.fetchCell()
		if err != nil {
			return err
		}
		return vm.pushData(c)
	}
	handlers[opBranch] = func(vm *VM) error {
		off, err := vm.fetchI16()
		if err != nil {
			return err
		}
		vm.ip = uint32(int64(vm.ip) + int64(off))
		return nil
	}
	handlers[opBranchZero] = func(vm *VM) error {
		off, err := vm.fetchI16()
		if err != nil {
			return err
		}
		cond, err := vm.popData()
		if err != nil {
			return err
		}
		if !cond.Truthy() {
			vm.ip = uint32(int64(vm.ip) + int64(off))
		}
		return nil
	}
	handlers[opPushLocal] = func(vm *VM) error {
		idx, err := vm.fetchByte()
		if err != nil {
			return err
		}
		v, err := vm.mem.ReadCell(segment.RStack, vm.localAddr(uint16(idx)))
		if err != nil {
			return err
		}
		return vm.pushData(Cell(v))
	}
	handlers[opStoreLocal] = func(vm *VM) error {
		idx, err := vm.fetchByte()
		if err != nil {
			return err
		}
		v, err := vm.popData()
		if err != nil {
			return err
		}
		return vm.mem.WriteCell(segment.RStack, vm.localAddr(uint16(idx)), uint32(v))
	}
	handlers[opPrologue] = func(vm *VM) error {
		n, err := vm.fetchByte()
		if err != nil {
			return err
		}
		return vm.doPrologue(n)
	}
	handlers[opExit] = func(vm *VM) error { return vm.doExit() }
	handlers[opMark] = func(vm *VM) error { return vm.pushR(vm.sp) }
	handlers[opEndList] = func(vm *VM) error {
		mark, err := vm.popR()
		if err != nil {
			return err
		}
		if vm.sp < mark {
			return MalformedListError{Declared: -1, Found: -1}
		}
		count := (vm.sp - mark) / cellSize
		hdr, err := NewList(int(count))
		if err != nil {
			return err
		}
		return vm.pushData(hdr)
	}
}

// step executes exactly one instruction.
func (vm *VM) step() error {
	b, err := vm.fetchByte()
	if err != nil {
		return err
	}
	if b&0x80 != 0 {
		b2, err := vm.fetchByte()
		if err != nil {
			return err
		}
		addr := (uint32(b&0x7F) << 8) | uint32(b2)
		return vm.call(addr)
	}
	h := handlers[b]
	if h == nil {
		return UndefinedWordError{Name: "<unbound opcode>"}
	}
	return h(vm)
}

// runQuotation drives a BUILTIN or CODE value to completion before
// returning, unlike eval/if-else's dispatchValue which only redirects ip
// and relies on the enclosing runUntil loop to unwind it later. A builtin
// callback (sort's/bfind's comparator, get's/set's path quotation) needs
// its result synchronously, so this pushes the call like dispatchValue
// does but then steps the VM until rp returns to the depth it had before
// the call, i.e. until the callee's own opExit (and those of anything it
// calls in turn) has fully unwound.
func (vm *VM) runQuotation(c Cell) error {
	if c.Tag() != TagCode {
		return vm.dispatchValue(c)
	}
	savedRP := vm.rp
	if err := vm.dispatchValue(c); err != nil {
		return err
	}
	for vm.rp > savedRP {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

// runUntil executes instructions until ip reaches end (exclusive), running
// becomes false, or ctx is cancelled. This is the top-level invocation
// mode (spec §4.5 "Halt when running becomes false or IP reaches end of
// emitted code for a top-level invocation"): a top-level chunk never goes
// through call/exit, so reaching its own end is itself the halt condition.
func (vm *VM) runUntil(ctx context.Context, end uint32) error {
	vm.running = true
	steps := 0
	for vm.running && vm.ip < end {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if vm.opt.maxSteps > 0 && steps >= vm.opt.maxSteps {
			return StepLimitError{Limit: vm.opt.maxSteps}
		}
		if vm.opt.trace != nil {
			vm.opt.trace(vm)
		}
		if err := vm.step(); err != nil {
			return err
		}
		steps++
	}
	vm.running = false
	return nil
}
