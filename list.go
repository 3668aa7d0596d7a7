package main

import (
	"sort"

	"github.com/jcorbin/tacitus/internal/segment"
)

// List values are a contiguous run of cells on the data stack: the slot
// count travels in a LIST-tagged header cell at the high-address end, with
// payload cells immediately below it, closest-to-head first (spec §3
// "reverse-list data model"). Grounded in the teacher's stack-discipline
// idiom (internals.go push/pop), generalized from single-cell push/pop to
// whole-run structural operations.
//
// Lists nest: the grouping syntax already leaves an inner list's header
// and payload inline inside whatever outer run is being built (its own
// mark captures every cell pushed since, including a nested header), so a
// slot can itself hold a LIST-tagged cell whose payload occupies the
// slots immediately following it. slot/elem/fetch/store stay O(1) raw
// physical-slot addressing and never look inside a nested run; length and
// the path walker behind get/set are the two operations that actually
// walk element-by-element, and they skip a nested header's payload+1
// cells as one logical element (spec §3 "traversal jumps by
// header.payload + 1").

// listHeader peeks the cell at the top of the data stack and requires it
// to carry a LIST tag, returning its header address and slot count.
func (vm *VM) listHeader() (addr uint32, slots uint16, err error) {
	if vm.sp < cellSize {
		return 0, 0, StackUnderflowError{Segment: SegStack, Op: "list", Need: 1, Have: 0}
	}
	addr = vm.sp - cellSize
	v, err := vm.mem.ReadCell(segment.Stack, addr)
	if err != nil {
		return 0, 0, err
	}
	c := Cell(v)
	if c.Tag() != TagList {
		return 0, 0, TypeError{Op: "list", Expected: "LIST", Got: c.Tag()}
	}
	return addr, c.Payload(), nil
}

func listSlotAddr(headerAddr uint32, i uint16) uint32 { return headerAddr - cellSize*uint32(i+1) }

func (vm *VM) readCell(seg segment.ID, addr uint32) (Cell, error) {
	v, err := vm.mem.ReadCell(seg, addr)
	return Cell(v), err
}

// builtinEnlist wraps the top value in a one-element list.
func (vm *VM) builtinEnlist() error {
	if err := vm.requireData(1); err != nil {
		return err
	}
	hdr, err := NewList(1)
	if err != nil {
		return err
	}
	return vm.pushData(hdr)
}

// builtinPack pops a count and turns the n values below it into a list.
func (vm *VM) builtinPack() error {
	nCell, err := vm.popData()
	if err != nil {
		return err
	}
	n := int(nCell.Int())
	if n < 0 {
		return ValueRangeError{Value: n, Kind: "pack-count"}
	}
	if err := vm.requireData(uint32(n)); err != nil {
		return err
	}
	hdr, err := NewList(n)
	if err != nil {
		return err
	}
	return vm.pushData(hdr)
}

// builtinUnpack pops a list, leaving its cells in place and pushing its
// slot count as an INTEGER.
func (vm *VM) builtinUnpack() error {
	hdr, err := vm.popData()
	if err != nil {
		return err
	}
	if hdr.Tag() != TagList {
		return TypeError{Op: "unpack", Expected: "LIST", Got: hdr.Tag()}
	}
	n, err := NewInteger(int(hdr.Payload()))
	if err != nil {
		return err
	}
	return vm.pushData(n)
}

// builtinCons prepends an element as the new head of a list: stack order
// is [..., list, elem].
func (vm *VM) builtinCons() error {
	elem, err := vm.popData()
	if err != nil {
		return err
	}
	hdr, err := vm.popData()
	if err != nil {
		return err
	}
	if hdr.Tag() != TagList {
		return TypeError{Op: "cons", Expected: "LIST", Got: hdr.Tag()}
	}
	if err := vm.pushData(elem); err != nil {
		return err
	}
	newHdr, err := NewList(int(hdr.Payload()) + 1)
	if err != nil {
		return err
	}
	return vm.pushData(newHdr)
}

// builtinUncons splits a list into its tail (left on stack as a shorter
// list) and its head element (pushed on top).
func (vm *VM) builtinUncons() error {
	hdr, err := vm.popData()
	if err != nil {
		return err
	}
	if hdr.Tag() != TagList {
		return TypeError{Op: "uncons", Expected: "LIST", Got: hdr.Tag()}
	}
	if hdr.Payload() == 0 {
		return ValueRangeError{Value: 0, Kind: "uncons-empty"}
	}
	headElem, err := vm.popData()
	if err != nil {
		return err
	}
	newHdr, err := NewList(int(hdr.Payload()) - 1)
	if err != nil {
		return err
	}
	if err := vm.pushData(newHdr); err != nil {
		return err
	}
	return vm.pushData(headElem)
}

// builtinHead pushes a copy of the head element, leaving the list intact.
func (vm *VM) builtinHead() error {
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	if n == 0 {
		return ValueRangeError{Value: 0, Kind: "head-empty"}
	}
	v, err := vm.readCell(segment.Stack, listSlotAddr(addr, 0))
	if err != nil {
		return err
	}
	return vm.pushData(v)
}

// builtinTail drops the list's head element, leaving the shortened list.
func (vm *VM) builtinTail() error {
	hdr, err := vm.popData()
	if err != nil {
		return err
	}
	if hdr.Tag() != TagList {
		return TypeError{Op: "tail", Expected: "LIST", Got: hdr.Tag()}
	}
	if hdr.Payload() == 0 {
		return ValueRangeError{Value: 0, Kind: "tail-empty"}
	}
	if _, err := vm.popData(); err != nil { // discard head element
		return err
	}
	newHdr, err := NewList(int(hdr.Payload()) - 1)
	if err != nil {
		return err
	}
	return vm.pushData(newHdr)
}

// builtinAppend appends an element as the new tail: stack order is
// [..., list, elem]. O(n): the whole payload shifts up by one cell to
// open room at the low (tail) end.
func (vm *VM) builtinAppend() error {
	elem, err := vm.popData()
	if err != nil {
		return err
	}
	hdr, err := vm.popData()
	if err != nil {
		return err
	}
	if hdr.Tag() != TagList {
		return TypeError{Op: "append", Expected: "LIST", Got: hdr.Tag()}
	}
	n := uint32(hdr.Payload())
	base := vm.sp - n*cellSize
	if err := vm.requireSpace(1); err != nil {
		return err
	}
	for i := int(n) - 1; i >= 0; i-- {
		v, err := vm.mem.ReadCell(segment.Stack, base+uint32(i)*cellSize)
		if err != nil {
			return err
		}
		if err := vm.mem.WriteCell(segment.Stack, base+uint32(i)*cellSize+cellSize, v); err != nil {
			return err
		}
	}
	if err := vm.mem.WriteCell(segment.Stack, base, uint32(elem)); err != nil {
		return err
	}
	vm.sp = base + (n+1)*cellSize
	newHdr, err := NewList(int(n) + 1)
	if err != nil {
		return err
	}
	return vm.pushData(newHdr)
}

func (vm *VM) requireSpace(cells uint32) error {
	if vm.sp+cells*cellSize > vm.mem.Size(segment.Stack) {
		return StackOverflowError{Segment: SegStack, Op: "grow"}
	}
	return nil
}

// builtinConcat merges two lists, stack order [..., A, B], into one list
// A-then-B. O(n): the two payload blocks swap places so the combined run
// stays contiguous with a single header on top.
func (vm *VM) builtinConcat() error {
	bHdr, err := vm.popData()
	if err != nil {
		return err
	}
	if bHdr.Tag() != TagList {
		return TypeError{Op: "concat", Expected: "LIST", Got: bHdr.Tag()}
	}
	nb := uint32(bHdr.Payload())
	bBase := vm.sp - nb*cellSize

	aHdrAddr := bBase - cellSize
	aHdrVal, err := vm.readCell(segment.Stack, aHdrAddr)
	if err != nil {
		return err
	}
	if aHdrVal.Tag() != TagList {
		return TypeError{Op: "concat", Expected: "LIST", Got: aHdrVal.Tag()}
	}
	na := uint32(aHdrVal.Payload())
	aBase := aHdrAddr - na*cellSize

	bBytes, err := vm.mem.ReadBytes(segment.Stack, bBase, nb*cellSize)
	if err != nil {
		return err
	}
	aBytes, err := vm.mem.ReadBytes(segment.Stack, aBase, na*cellSize)
	if err != nil {
		return err
	}
	if err := vm.mem.WriteBytes(segment.Stack, aBase, bBytes); err != nil {
		return err
	}
	if err := vm.mem.WriteBytes(segment.Stack, aBase+nb*cellSize, aBytes); err != nil {
		return err
	}
	vm.sp = aBase + (na+nb)*cellSize
	hdr, err := NewList(int(na + nb))
	if err != nil {
		return err
	}
	return vm.pushData(hdr)
}

// builtinReverse flips element order in place; the header is untouched.
func (vm *VM) builtinReverse() error {
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	base := addr - uint32(n)*cellSize
	for i, j := uint32(0), uint32(n)-1; i < j; i, j = i+1, j-1 {
		vi, err := vm.mem.ReadCell(segment.Stack, base+i*cellSize)
		if err != nil {
			return err
		}
		vj, err := vm.mem.ReadCell(segment.Stack, base+j*cellSize)
		if err != nil {
			return err
		}
		if err := vm.mem.WriteCell(segment.Stack, base+i*cellSize, vj); err != nil {
			return err
		}
		if err := vm.mem.WriteCell(segment.Stack, base+j*cellSize, vi); err != nil {
			return err
		}
	}
	return nil
}

// builtinSlots pushes the raw cell count, leaving the list in place.
func (vm *VM) builtinSlots() error {
	_, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	c, err := NewInteger(int(n))
	if err != nil {
		return err
	}
	return vm.pushData(c)
}

// countElements walks a list's payload once, treating a nested LIST
// header as a single element spanning header.Payload()+1 physical slots,
// and returns the logical element count (spec §4.6 "length", O(s)).
func (vm *VM) countElements(headerAddr uint32, n uint16) (int, error) {
	count := 0
	for phys := uint16(0); phys < n; count++ {
		v, err := vm.readCell(segment.Stack, listSlotAddr(headerAddr, phys))
		if err != nil {
			return 0, err
		}
		if v.Tag() == TagList {
			phys += v.Payload() + 1
		} else {
			phys++
		}
	}
	return count, nil
}

// elementAddr locates the address of a list's idx-th logical element,
// honoring Python-style negative wraparound against the logical element
// count (not the raw slot count), and walking nested runs the same way
// countElements does. ok is false, with no error, when idx is out of
// range after wraparound: get's path walker short-circuits to NIL on
// that rather than failing.
func (vm *VM) elementAddr(headerAddr uint32, n uint16, idx int) (addr uint32, ok bool, err error) {
	total, err := vm.countElements(headerAddr, n)
	if err != nil {
		return 0, false, err
	}
	if idx < 0 {
		idx += total
	}
	if idx < 0 || idx >= total {
		return 0, false, nil
	}
	cur := 0
	for phys := uint16(0); phys < n; cur++ {
		slotAddr := listSlotAddr(headerAddr, phys)
		if cur == idx {
			return slotAddr, true, nil
		}
		v, err := vm.readCell(segment.Stack, slotAddr)
		if err != nil {
			return 0, false, err
		}
		if v.Tag() == TagList {
			phys += v.Payload() + 1
		} else {
			phys++
		}
	}
	return 0, false, nil
}

// builtinLength counts logical elements, leaving the list in place (spec
// §4.6/§4.7: length is O(s) element count, distinct from slots' O(1) raw
// cell count; scenario §8.3 wants slots=5, length=3 for
// `( 1 ( 2 3 ) 4 )`).
func (vm *VM) builtinLength() error {
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	count, err := vm.countElements(addr, n)
	if err != nil {
		return err
	}
	c, err := NewInteger(count)
	if err != nil {
		return err
	}
	return vm.pushData(c)
}

// evalComparator runs a comparator quotation as `(A B -- r)` (spec §4.7
// "sort { cmp }"/"bfind ... { cmp }"), truthy meaning A belongs before B.
// Uses runQuotation rather than dispatchValue because sort's Go-side
// sort.Interface needs the boolean result before it can take its next
// step, not just an ip redirect for the enclosing loop to unwind later.
func (vm *VM) evalComparator(cmp, a, b Cell) (bool, error) {
	if err := vm.pushData(a); err != nil {
		return false, err
	}
	if err := vm.pushData(b); err != nil {
		return false, err
	}
	if err := vm.runQuotation(cmp); err != nil {
		return false, err
	}
	r, err := vm.popData()
	if err != nil {
		return false, err
	}
	return r.Truthy(), nil
}

func requireComparator(op string, c Cell) error {
	if c.Tag() != TagCode && c.Tag() != TagBuiltin {
		return TypeError{Op: op, Expected: "CODE or BUILTIN", Got: c.Tag()}
	}
	return nil
}

// builtinSort stable-sorts a list's elements in place using a
// user-supplied comparator: stack order is [..., list, cmp] -> [...,
// list] (spec §4.7 "sort { cmp }"). sort.Stable's Less can't return an
// error, so a comparator fault is latched on vmSort and surfaced once the
// sort completes, before any write-back happens.
func (vm *VM) builtinSort() error {
	cmp, err := vm.popData()
	if err != nil {
		return err
	}
	if err := requireComparator("sort", cmp); err != nil {
		return err
	}
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	vals := make([]Cell, n)
	for i := range vals {
		v, err := vm.mem.ReadCell(segment.Stack, listSlotAddr(addr, uint16(i)))
		if err != nil {
			return err
		}
		vals[i] = Cell(v)
	}
	s := &vmSort{vm: vm, cmp: cmp, vals: vals}
	sort.Stable(s)
	if s.err != nil {
		return s.err
	}
	for i, v := range s.vals {
		if err := vm.mem.WriteCell(segment.Stack, listSlotAddr(addr, uint16(i)), uint32(v)); err != nil {
			return err
		}
	}
	return nil
}

type vmSort struct {
	vm   *VM
	cmp  Cell
	vals []Cell
	err  error
}

func (s *vmSort) Len() int      { return len(s.vals) }
func (s *vmSort) Swap(i, j int) { s.vals[i], s.vals[j] = s.vals[j], s.vals[i] }
func (s *vmSort) Less(i, j int) bool {
	if s.err != nil {
		return false
	}
	lt, err := s.vm.evalComparator(s.cmp, s.vals[i], s.vals[j])
	if err != nil {
		s.err = err
	}
	return lt
}

// builtinFind scans a map-list's alternating pairs for a key cell equal
// to the top of stack, leaving the list and pushing the matching value's
// slot position (not the key's), or the `default` key's value position
// if no exact match exists, or NIL if there is no default entry either
// (spec §4.7 "find"). The reverse-list layout puts each pair's value one
// physical slot closer to the header than its key, since `key value` is
// written key-first but value ends up pushed (and thus closer to the
// header) last: scanning even slots as values and the following odd slot
// as its key walks every pair once.
func (vm *VM) builtinFind() error {
	target, err := vm.popData()
	if err != nil {
		return err
	}
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	defaultID, err := vm.digest.Intern("default")
	if err != nil {
		return err
	}
	defaultKey := NewString(defaultID)
	defaultPos := -1
	for i := uint16(0); i+1 < n; i += 2 {
		k, err := vm.readCell(segment.Stack, listSlotAddr(addr, i+1))
		if err != nil {
			return err
		}
		if k == target {
			c, err := NewInteger(int(i))
			if err != nil {
				return err
			}
			return vm.pushData(c)
		}
		if k == defaultKey {
			defaultPos = int(i)
		}
	}
	if defaultPos >= 0 {
		c, err := NewInteger(defaultPos)
		if err != nil {
			return err
		}
		return vm.pushData(c)
	}
	return vm.pushData(Nil)
}

// builtinBFind binary-searches a list assumed already sorted by cmp:
// stack order is [..., list, target, cmp] -> [..., list, index-or-NIL]
// (spec §4.7 "bfind target ... { cmp }"). Two comparator calls per step
// (v<target, then target<v) derive equality without requiring cmp to
// expose anything beyond a strict less-than.
func (vm *VM) builtinBFind() error {
	cmp, err := vm.popData()
	if err != nil {
		return err
	}
	if err := requireComparator("bfind", cmp); err != nil {
		return err
	}
	target, err := vm.popData()
	if err != nil {
		return err
	}
	addr, n, err := vm.listHeader()
	if err != nil {
		return err
	}
	lo, hi := 0, int(n)
	for lo < hi {
		mid := (lo + hi) / 2
		v, err := vm.readCell(segment.Stack, listSlotAddr(addr, uint16(mid)))
		if err != nil {
			return err
		}
		vLess, err := vm.evalComparator(cmp, v, target)
		if err != nil {
			return err
		}
		if vLess {
			lo = mid + 1
			continue
		}
		tLess, err := vm.evalComparator(cmp, target, v)
		if err != nil {
			return err
		}
		if tLess {
			hi = mid
			continue
		}
		c, err := NewInteger(mid)
		if err != nil {
			return err
		}
		return vm.pushData(c)
	}
	return vm.pushData(Nil)
}
