package main

import (
	"github.com/jcorbin/tacitus/internal/mem"
	"github.com/jcorbin/tacitus/internal/segment"
)

// hashIndex is a snapshot index over a list's elements, built once by
// hindex and queried repeatedly by hfind in O(1) amortized time instead of
// find's O(n) linear scan.
//
// Adapted from the teacher's internal/mem.Ints paged integer store
// (internal/mem/int.go): values are archived there in slot order, keyed by
// a Go map from raw cell bits to the slot indices sharing that value, so
// repeat lookups never re-touch the data stack.
type hashIndex struct {
	values  mem.Ints
	byValue map[uint32][]int
	n       int
}

func newHashIndex(vals []Cell) *hashIndex {
	h := &hashIndex{byValue: make(map[uint32][]int, len(vals)), n: len(vals)}
	raw := make([]int, len(vals))
	for i, v := range vals {
		raw[i] = int(v)
		h.byValue[uint32(v)] = append(h.byValue[uint32(v)], i)
	}
	_ = h.values.Stor(0, raw...)
	return h
}

func (h *hashIndex) find(target Cell) (int, bool) {
	idxs, ok := h.byValue[uint32(target)]
	if !ok || len(idxs) == 0 {
		return 0, false
	}
	return idxs[0], true
}

// builtinHIndex builds a hash index over a list, leaving the list in place
// and pushing an INTEGER handle referencing it.
func (vm *VM) builtinHIndex() error {
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	vals := make([]Cell, n)
	for i := uint16(0); i < n; i++ {
		v, err := vm.readCell(segment.Stack, listSlotAddr(addr, i))
		if err != nil {
			return err
		}
		vals[i] = v
	}
	handle := len(vm.hashIndex)
	vm.hashIndex = append(vm.hashIndex, newHashIndex(vals))
	c, err := NewInteger(handle)
	if err != nil {
		return err
	}
	return vm.pushData(c)
}

// builtinHFind queries a hash index built by hindex: stack order is
// [..., handle, target]. Pushes the slot index found at hindex time, or
// NIL if the index holds no such value.
func (vm *VM) builtinHFind() error {
	target, err := vm.popData()
	if err != nil {
		return err
	}
	handleCell, err := vm.popData()
	if err != nil {
		return err
	}
	handle := int(handleCell.Int())
	if handle < 0 || handle >= len(vm.hashIndex) {
		return ValueRangeError{Value: handle, Kind: "hindex-handle"}
	}
	idx, ok := vm.hashIndex[handle].find(target)
	if !ok {
		return vm.pushData(Nil)
	}
	c, err := NewInteger(idx)
	if err != nil {
		return err
	}
	return vm.pushData(c)
}
