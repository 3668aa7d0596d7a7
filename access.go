package main

import "github.com/jcorbin/tacitus/internal/segment"

// get/set implement the polymorphic access layer over a (possibly
// nested) list, by walking a path quotation rather than a single key
// (spec §3 "polymorphic get/set", §4.8). `{ path }` is a CODE reference;
// evaluating it is expected to leave zero or more path segments (INTEGER
// cells or integral NUMBER cells, see cellAsIndex) on the stack. get/set measure how many cells the quotation actually
// pushed and consume exactly that many, popping them one at a time: the
// first pop is the quotation's last-pushed cell, and it drives the first
// navigation step against the target itself, with each subsequent pop
// descending one level further into whatever nested list the previous
// step landed on. Each step honors Python-style negative-from-end
// wraparound (elementAddr) and get short-circuits the whole walk to
// NIL the moment a step's index is out of range; set instead errors,
// since there is no container left to write into. Both leave the target
// on the data stack, mirroring slot/elem/fetch/store's non-destructive
// discipline.

func normalizeIndex(n int, idx int) (int, error) {
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, ValueRangeError{Value: idx, Kind: "index"}
	}
	return idx, nil
}

// cellAsIndex reads c as a whole-number index: an INTEGER cell's signed
// payload, or a NUMBER cell holding an integral value (source literals
// like the `1` in `{ 1 0 }` compile as plain NUMBER cells, not INTEGER;
// path segments accept either).
func cellAsIndex(c Cell) (int, bool) {
	if c.Tag() == TagInteger {
		return int(c.Int()), true
	}
	if c.IsNumber() {
		f := c.Float()
		if f == float32(int32(f)) {
			return int(f), true
		}
	}
	return 0, false
}

// popPathSegments pops count index cells freshly left on the stack by a
// path quotation, returning them in navigation order: index 0 is the
// quotation's last-pushed (topmost) cell, driving the first step.
func (vm *VM) popPathSegments(op string, count uint32) ([]int, error) {
	idxs := make([]int, count)
	for i := range idxs {
		c, err := vm.popData()
		if err != nil {
			return nil, err
		}
		idx, ok := cellAsIndex(c)
		if !ok {
			return nil, TypeError{Op: op, Expected: "integer path segment", Got: c.Tag()}
		}
		idxs[i] = idx
	}
	return idxs, nil
}

// walkPath descends from a list header through one nested level per
// index in idxs, using elementAddr's nested-aware logical addressing
// (negative-from-end wraparound included) at each step. ok is false,
// with no error, the moment a step's index is out of range; if the
// current value stops being a LIST before idxs is exhausted, the walk
// returns a TypeError instead.
func (vm *VM) walkPath(op string, headerAddr uint32, idxs []int) (addr uint32, ok bool, err error) {
	addr = headerAddr
	for _, idx := range idxs {
		v, err := vm.readCell(segment.Stack, addr)
		if err != nil {
			return 0, false, err
		}
		if v.Tag() != TagList {
			return 0, false, TypeError{Op: op, Expected: "LIST", Got: v.Tag()}
		}
		next, ok, err := vm.elementAddr(addr, v.Payload(), idx)
		if err != nil || !ok {
			return 0, ok, err
		}
		addr = next
	}
	return addr, true, nil
}

// evalPath evaluates a `{ path }` quotation and returns the index
// segments it left on the stack, in navigation order (see
// popPathSegments). The container the path will walk must already be on
// the stack below path, untouched by this.
func (vm *VM) evalPath(op string, path Cell) ([]int, error) {
	if path.Tag() != TagCode && path.Tag() != TagBuiltin {
		return nil, TypeError{Op: op, Expected: "CODE", Got: path.Tag()}
	}
	spBefore := vm.sp
	if err := vm.runQuotation(path); err != nil {
		return nil, err
	}
	return vm.popPathSegments(op, (vm.sp-spBefore)/cellSize)
}

// builtinGet: stack order [..., target, path] -> [..., target, value]
// (spec §4.8 "get target { path }"). An out-of-range step anywhere along
// the path reads back as NIL rather than erroring.
func (vm *VM) builtinGet() error {
	path, err := vm.popData()
	if err != nil {
		return err
	}
	targetAddr, _, err := vm.listHeader()
	if err != nil {
		return err
	}
	idxs, err := vm.evalPath("get", path)
	if err != nil {
		return err
	}
	addr, ok, err := vm.walkPath("get", targetAddr, idxs)
	if err != nil {
		return err
	}
	if !ok {
		return vm.pushData(Nil)
	}
	v, err := vm.readCell(segment.Stack, addr)
	if err != nil {
		return err
	}
	return vm.pushData(v)
}

// builtinSet: stack order [..., target, path, value] -> [..., target],
// with the path's final step overwritten in place (spec §4.8 "set target
// { path } value"). Unlike get, an out-of-range step is an error: there
// is no container left to silently skip writing into.
func (vm *VM) builtinSet() error {
	value, err := vm.popData()
	if err != nil {
		return err
	}
	path, err := vm.popData()
	if err != nil {
		return err
	}
	targetAddr, _, err := vm.listHeader()
	if err != nil {
		return err
	}
	idxs, err := vm.evalPath("set", path)
	if err != nil {
		return err
	}
	if len(idxs) == 0 {
		return ValueRangeError{Value: 0, Kind: "set-empty-path"}
	}
	addr, ok, err := vm.walkPath("set", targetAddr, idxs)
	if err != nil {
		return err
	}
	if !ok {
		return ValueRangeError{Value: 0, Kind: "set-path-index"}
	}
	return vm.mem.WriteCell(segment.Stack, addr, uint32(value))
}

// builtinSlot: stack order [..., list, idx] -> [..., list, value]. Raw,
// non-negative, O(1) index; no wraparound.
func (vm *VM) builtinSlot() error {
	idxCell, err := vm.popData()
	if err != nil {
		return err
	}
	if idxCell.Tag() != TagInteger {
		return TypeError{Op: "slot", Expected: "INTEGER", Got: idxCell.Tag()}
	}
	idx := int(idxCell.Int())
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	if idx < 0 || idx >= int(n) {
		return ValueRangeError{Value: idx, Kind: "slot-index"}
	}
	v, err := vm.readCell(segment.Stack, listSlotAddr(addr, uint16(idx)))
	if err != nil {
		return err
	}
	return vm.pushData(v)
}

// builtinElem is slot with Python-style negative-index wraparound.
func (vm *VM) builtinElem() error {
	idxCell, err := vm.popData()
	if err != nil {
		return err
	}
	if idxCell.Tag() != TagInteger {
		return TypeError{Op: "elem", Expected: "INTEGER", Got: idxCell.Tag()}
	}
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	idx, err := normalizeIndex(int(n), int(idxCell.Int()))
	if err != nil {
		return err
	}
	v, err := vm.readCell(segment.Stack, listSlotAddr(addr, uint16(idx)))
	if err != nil {
		return err
	}
	return vm.pushData(v)
}

// builtinFetch: stack order [..., list, idx] -> [..., list, value]. Alias
// for elem's wraparound-aware positional read, named for the array-store
// pairing with store/@-!.
func (vm *VM) builtinFetch() error { return vm.builtinElem() }

// builtinStore: stack order [..., list, idx, value] -> [..., list], with
// the slot overwritten in place.
func (vm *VM) builtinStore() error {
	value, err := vm.popData()
	if err != nil {
		return err
	}
	idxCell, err := vm.popData()
	if err != nil {
		return err
	}
	if idxCell.Tag() != TagInteger {
		return TypeError{Op: "store", Expected: "INTEGER", Got: idxCell.Tag()}
	}
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	idx, err := normalizeIndex(int(n), int(idxCell.Int()))
	if err != nil {
		return err
	}
	return vm.mem.WriteCell(segment.Stack, listSlotAddr(addr, uint16(idx)), uint32(value))
}
